// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package live serves the websocket sessions that drive page transitions and
// scroll reveals in the browser.
package live

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ManuGH/kamiya/internal/clock"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/nav"
	"github.com/ManuGH/kamiya/internal/reveal"
	"github.com/ManuGH/kamiya/internal/web"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Settings are the per-session timings. They are read when a session opens,
// so a reload only affects new sessions.
type Settings struct {
	Timings         nav.Timings
	Entrance        reveal.EntranceTimings
	RevealThreshold float64
}

// DefaultSettings returns the stock timings.
func DefaultSettings() Settings {
	return Settings{
		Timings:         nav.DefaultTimings(),
		Entrance:        reveal.DefaultEntranceTimings(),
		RevealThreshold: reveal.DefaultThreshold,
	}
}

// HubOptions configures a Hub. Pages is required.
type HubOptions struct {
	Pages web.Fragmenter
	// BaseURL is the public origin; browsers connecting from elsewhere are
	// rejected. When empty the request host is trusted.
	BaseURL string
	// Settings is consulted for every new session.
	Settings    func() Settings
	Clock       clock.Clock
	MaxSessions int
	Logger      *zerolog.Logger
}

// Hub accepts live connections and owns their sessions.
type Hub struct {
	pages       web.Fragmenter
	base        *url.URL
	settings    func() Settings
	clock       clock.Clock
	maxSessions int
	logger      zerolog.Logger
	upgrader    websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	// slots counts admitted connections, including ones still upgrading.
	slots  int
	closed bool
	wg     sync.WaitGroup
}

// NewHub validates opts.
func NewHub(opts HubOptions) (*Hub, error) {
	if opts.Pages == nil {
		return nil, errors.New("live: pages are required")
	}
	var base *url.URL
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("live: base url must be absolute")
		}
		base = u
	}
	if opts.Settings == nil {
		opts.Settings = DefaultSettings
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	logger := xglog.WithComponent("live")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		pages:       opts.Pages,
		base:        base,
		settings:    opts.Settings,
		clock:       opts.Clock,
		maxSessions: opts.MaxSessions,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*Session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     h.checkOrigin,
	}
	return h, nil
}

// checkOrigin accepts the configured origin or, without one, the request's
// own host.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if h.base != nil {
		return strings.EqualFold(u.Host, h.base.Host)
	}
	return strings.EqualFold(u.Host, r.Host)
}

// originOf is the site origin links are classified against.
func (h *Hub) originOf(r *http.Request) *url.URL {
	if h.base != nil {
		return h.base
	}
	if o := r.Header.Get("Origin"); o != "" {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			return u
		}
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.admit(); err != nil {
		h.logger.Warn().Err(err).Str(xglog.FieldEvent, "live.rejected").Msg("live session rejected")
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer h.leave()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered.
		h.logger.Debug().Err(err).Str(xglog.FieldEvent, "live.upgrade_failed").Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	logger := h.logger.With().
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldRequestID, xglog.RequestIDFromContext(r.Context())).
		Logger()
	s, err := newSession(sessionOptions{
		ID:       id,
		Conn:     conn,
		Origin:   h.originOf(r),
		Pages:    h.pages,
		Clock:    h.clock,
		Settings: h.settings(),
		Logger:   logger,
	})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "live.session_failed").Msg("live session setup failed")
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
	}()

	logger.Debug().Str(xglog.FieldEvent, "live.session_opened").Msg("live session opened")
	ctx := xglog.ContextWithSessionID(h.ctx, id)
	if err := s.Run(ctx); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "live.session_error").Msg("live session ended with error")
	}
}

var (
	errHubClosed = errors.New("live: hub closed")
	errHubFull   = errors.New("live: session limit reached")
)

// admit reserves a session slot before the upgrade so concurrent handshakes
// cannot overshoot the limit. Every successful admit needs a leave.
func (h *Hub) admit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	if h.maxSessions > 0 && h.slots >= h.maxSessions {
		return errHubFull
	}
	h.slots++
	h.wg.Add(1)
	return nil
}

func (h *Hub) leave() {
	h.mu.Lock()
	h.slots--
	h.mu.Unlock()
	h.wg.Done()
}

// Sessions reports open sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every session and waits for them. New connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}
