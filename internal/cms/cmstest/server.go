// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cmstest provides a scriptable fake CMS for tests.
package cmstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path prefix of the fake API; BaseURL includes it.
const APIPrefix = "/api/v1"

// Response scripts the answer for one path.
type Response struct {
	Status int
	Body   string
	// Delay holds the response back.
	Delay time.Duration
	// Gate, when set, blocks the handler until it is closed.
	Gate chan struct{}
}

// Request is a recorded inbound request.
type Request struct {
	Path   string
	Query  string
	APIKey string
}

// Server is a fake CMS backed by httptest.
type Server struct {
	*httptest.Server

	apiKey string

	mu       sync.RWMutex
	routes   map[string]Response
	funcs    map[string]http.HandlerFunc
	requests []Request
}

// New starts a fake CMS that accepts apiKey. Unscripted paths answer 404.
func New(apiKey string) *Server {
	s := &Server{apiKey: apiKey, routes: make(map[string]Response), funcs: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURL is the API root to hand to the client.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

// Handle scripts the response for path (e.g. "/news" or "/news/abc").
func (s *Server) Handle(path string, r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = r
}

// HandleFunc installs a custom handler for path, e.g. to page by offset.
func (s *Server) HandleFunc(path string, fn http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[path] = fn
}

// JSON scripts a JSON response.
func (s *Server) JSON(path string, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.Handle(path, Response{Status: status, Body: string(b)})
}

// List scripts a list endpoint returning items.
func (s *Server) List(path string, items ...any) {
	if items == nil {
		items = []any{}
	}
	s.JSON(path, http.StatusOK, map[string]any{
		"contents":   items,
		"totalCount": len(items),
		"offset":     0,
		"limit":      len(items),
	})
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.requests...)
}

// Count reports the requests received for path.
func (s *Server) Count(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)
	key := r.Header.Get("X-MICROCMS-API-KEY")

	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: path, Query: r.URL.RawQuery, APIKey: key})
	resp, ok := s.routes[path]
	fn := s.funcs[path]
	s.mu.Unlock()

	if key != s.apiKey {
		writeJSON(w, http.StatusUnauthorized, `{"message":"X-MICROCMS-API-KEY header is invalid."}`)
		return
	}
	if fn != nil {
		fn(w, r)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, `{"message":"Content is not found."}`)
		return
	}
	if resp.Gate != nil {
		select {
		case <-resp.Gate:
		case <-r.Context().Done():
			return
		}
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
