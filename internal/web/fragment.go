// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Fragment is the content block of a page, ready to be swapped into a live
// page.
type Fragment struct {
	Path   string
	Title  string
	HTML   string
	Status int
}

// Fragmenter renders fragments.
type Fragmenter interface {
	Fragment(ctx context.Context, target string) (Fragment, error)
}

// ErrNotHTML is returned when a target answers with something other than a
// page, such as the feed. The caller should let the browser load it.
var ErrNotHTML = errors.New("web: target is not a page")

// Fragment renders target (an escaped path with optional query) through the
// page routes. 404 and 503 pages are fragments too; only a render failure is
// an error.
func (s *Server) Fragment(ctx context.Context, target string) (Fragment, error) {
	if !strings.HasPrefix(target, "/") {
		return Fragment{}, fmt.Errorf("web: fragment target %q is not a path", target)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Fragment{}, fmt.Errorf("web: fragment request %q: %w", target, err)
	}
	req.Header.Set(HeaderFragment, "1")
	if s.baseURL != "" {
		if u, err := url.Parse(s.baseURL); err == nil {
			req.Host = u.Host
		}
	}

	bw := newBufferWriter()
	s.pages.ServeHTTP(bw, req)

	if bw.status >= http.StatusInternalServerError && bw.status != http.StatusServiceUnavailable {
		return Fragment{}, fmt.Errorf("web: fragment %q: status %d", target, bw.status)
	}
	if !strings.HasPrefix(bw.header.Get("Content-Type"), "text/html") {
		return Fragment{}, ErrNotHTML
	}
	title, err := url.PathUnescape(bw.header.Get(HeaderTitle))
	if err != nil {
		title = ""
	}
	return Fragment{Path: target, Title: title, HTML: bw.buf.String(), Status: bw.status}, nil
}

// bufferWriter captures a response in memory.
type bufferWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func newBufferWriter() *bufferWriter {
	return &bufferWriter{header: make(http.Header)}
}

func (b *bufferWriter) Header() http.Header { return b.header }

func (b *bufferWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.buf.Write(p)
}

// SwapFunc delivers a rendered fragment to the browser.
type SwapFunc func(ctx context.Context, f Fragment) error

// PageRouter changes the route of a live page by rendering the target and
// handing it to swap. It satisfies nav.Router.
type PageRouter struct {
	pages Fragmenter
	swap  SwapFunc
}

// NewPageRouter returns a router rendering through pages.
func NewPageRouter(pages Fragmenter, swap SwapFunc) *PageRouter {
	return &PageRouter{pages: pages, swap: swap}
}

// Navigate renders path and swaps it in.
func (p *PageRouter) Navigate(ctx context.Context, path string) error {
	f, err := p.pages.Fragment(ctx, path)
	if err != nil {
		return err
	}
	return p.swap(ctx, f)
}
