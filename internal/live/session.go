// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package live

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/ManuGH/kamiya/internal/nav"
	"github.com/ManuGH/kamiya/internal/reveal"
	"github.com/ManuGH/kamiya/internal/web"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	outboxSize     = 64
)

// errPeerClosed ends a session whose browser went away.
var errPeerClosed = errors.New("live: peer closed")

// Session bridges one browser tab to its coordinator, reveal registry and
// entrance gate. All decisions are made here; the browser only renders.
type Session struct {
	id       string
	conn     *websocket.Conn
	origin   *url.URL
	logger   zerolog.Logger
	out      chan Command
	lock     *nav.Lock
	bus      *nav.Bus
	coord    *nav.Coordinator
	registry *reveal.Registry
	entrance *reveal.Entrance
	animator *clientAnimator

	ctx context.Context

	mu   sync.Mutex
	path string

	teardownOnce sync.Once
}

type sessionOptions struct {
	ID       string
	Conn     *websocket.Conn
	Origin   *url.URL
	Pages    web.Fragmenter
	Clock    clock.Clock
	Settings Settings
	Logger   zerolog.Logger
}

func newSession(opts sessionOptions) (*Session, error) {
	s := &Session{
		id:     opts.ID,
		conn:   opts.Conn,
		origin: opts.Origin,
		logger: opts.Logger,
		out:    make(chan Command, outboxSize),
		lock:   nav.NewLock(),
		bus:    nav.NewBus(),
	}
	s.animator = newClientAnimator(s.send)
	s.registry = reveal.NewRegistry(opts.Settings.RevealThreshold, func(r reveal.Reveal) {
		s.send(revealCommand(r))
	})

	entranceLogger := s.logger.With().Str(xglog.FieldComponent, "reveal").Logger()
	s.entrance = reveal.NewEntrance(reveal.EntranceOptions{
		Animator: s.animator,
		Lock:     s.lock,
		Clock:    opts.Clock,
		Timings:  opts.Settings.Entrance,
		OnLoaded: s.onLoaded,
		Logger:   &entranceLogger,
	})

	pages := web.NewPageRouter(opts.Pages, s.swap)
	router := nav.RouterFunc(func(ctx context.Context, path string) error {
		err := pages.Navigate(ctx, path)
		if errors.Is(err, web.ErrNotHTML) {
			s.send(Command{Type: cmdFollow, Href: path})
		}
		return err
	})

	navLogger := s.logger.With().Str(xglog.FieldComponent, "nav").Logger()
	coord, err := nav.NewCoordinator(nav.Options{
		Router:   router,
		Animator: s.animator,
		Lock:     s.lock,
		Bus:      s.bus,
		Clock:    opts.Clock,
		Timings:  opts.Settings.Timings,
		Logger:   &navLogger,
		Observer: func(c nav.StateChange) {
			s.send(Command{Type: cmdState, State: string(c.To)})
		},
	})
	if err != nil {
		return nil, err
	}
	s.coord = coord
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Path returns the page the browser currently shows.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Session) setPath(p string) {
	s.mu.Lock()
	s.path = p
	s.mu.Unlock()
}

// Run serves the session until the browser disconnects or ctx is done, then
// tears everything down. A normal disconnect returns nil.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	s.ctx = gctx
	metrics.LiveSessions.Inc()
	defer metrics.LiveSessions.Dec()
	defer s.teardown()

	s.coord.Start(gctx)
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.lockLoop(gctx) })
	g.Go(func() error { return s.busLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, errPeerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.coord.Close()
		s.entrance.Close()
		s.registry.Close()
		s.lock.Release("session")
		s.logger.Debug().Str(xglog.FieldEvent, "live.session_closed").Msg("live session closed")
	})
}

// send queues cmd for the browser. It gives up once the session is ending.
func (s *Session) send(cmd Command) {
	select {
	case s.out <- cmd:
	case <-s.ctx.Done():
	}
}

func (s *Session) swap(_ context.Context, f web.Fragment) error {
	s.setPath(f.Path)
	s.send(Command{Type: cmdSwap, Path: f.Path, Title: f.Title, HTML: f.HTML})
	return nil
}

func (s *Session) onLoaded(l reveal.Loaded) {
	if l.Instant {
		s.send(entranceCommand(l.Path, 0, 0, true))
	}
	s.send(Command{Type: cmdLoaded, Path: l.Path})
}

func (s *Session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case cmd := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(cmd); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return ctx.Err()
		}
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug().Err(err).Str(xglog.FieldEvent, "live.read_failed").Msg("live connection dropped")
			}
			return errPeerClosed
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		in, err := decodeInbound(data)
		if err != nil {
			s.logger.Debug().Err(err).Str(xglog.FieldEvent, "live.bad_message").Msg("ignoring malformed message")
			continue
		}
		if err := s.handle(in); err != nil {
			return err
		}
	}
}

func (s *Session) handle(in Inbound) error {
	switch in.Type {
	case msgNavigate:
		return s.navigate(in.Link)
	case msgAnimationDone:
		s.animator.complete(in.Name)
	case msgMountSection:
		if _, err := s.registry.Mount(in.Section, in.targets()); err != nil {
			s.logger.Debug().Err(err).
				Str(xglog.FieldEvent, "live.mount_rejected").
				Str(xglog.FieldSection, in.Section).
				Msg("section mount rejected")
		}
	case msgUnmountSection:
		s.registry.Unmount(in.Section)
	case msgIntersect:
		s.registry.Observe(in.Section, reveal.Entry{ID: in.ID, Ratio: in.Ratio, Intersecting: in.Intersecting})
	case msgContentMounted:
		if !strings.HasPrefix(in.Path, "/") {
			return nil
		}
		s.setPath(in.Path)
		s.entrance.Mount(in.Path)
	default:
		s.logger.Debug().Str(xglog.FieldEvent, "live.unknown_message").Str("type", in.Type).Msg("ignoring unknown message")
	}
	return nil
}

func (s *Session) navigate(link nav.Link) error {
	intent, decision := nav.Classify(link, s.origin, s.Path())
	if decision == nav.DecisionBypass {
		metrics.IncNavTransition(string(nav.DecisionBypass))
		if link.Href != "" {
			s.send(Command{Type: cmdFollow, Href: link.Href})
		}
		return nil
	}
	switch err := s.coord.Activate(intent); {
	case err == nil:
	case errors.Is(err, nav.ErrBusy):
		// The browser keeps showing the transition already running.
	case errors.Is(err, nav.ErrClosed):
		return err
	default:
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "live.activate_failed").Str(xglog.FieldPath, intent.TargetPath).Msg("navigation not started")
	}
	return nil
}

func (s *Session) lockLoop(ctx context.Context) error {
	ch, unsubscribe := s.lock.Subscribe()
	defer unsubscribe()
	for {
		select {
		case v := <-ch:
			s.send(lockCommand(v))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// busLoop follows settled navigations so link classification always sees
// the page the browser shows.
func (s *Session) busLoop(ctx context.Context) error {
	sub := s.bus.Subscribe(nav.KindStarting, nav.KindSettled)
	defer sub.Close()
	for {
		select {
		case ev := <-sub.C():
			if ev.Kind == nav.KindSettled {
				s.setPath(ev.Path)
			}
			s.logger.Debug().
				Str(xglog.FieldEvent, "live.navigation").
				Str("kind", string(ev.Kind)).
				Str(xglog.FieldPath, ev.Path).
				Msg("navigation signal")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
