// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package web renders the site and serves its pages.
package web

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
	"github.com/ManuGH/kamiya/internal/content"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/ManuGH/kamiya/internal/reveal"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	// HeaderFragment asks for the content block only.
	HeaderFragment = "X-Kamiya-Fragment"
	// HeaderTitle carries the URL-escaped page title of a fragment.
	HeaderTitle = "X-Kamiya-Title"
)

// Options configures a Server. Site, News and Renderer are required.
type Options struct {
	Site     *content.Site
	News     *content.NewsService
	Renderer *Renderer
	Clock    clock.Clock
	// BaseURL is the public origin used in canonical links, the feed and the
	// sitemap. When empty it is derived from the request.
	BaseURL         string
	RevealThreshold float64
	// Live opts pages into the websocket shim.
	Live bool
	// AssetsDir, when set, serves /images/* from disk.
	AssetsDir string
	// Loading is how long the loading indicator stays up after each page
	// change. Zero selects DefaultLoading.
	Loading time.Duration
	Logger  *zerolog.Logger
}

// DefaultLoading is the stock loading indicator duration.
const DefaultLoading = 500 * time.Millisecond

// Server renders pages.
type Server struct {
	site      *content.Site
	news      *content.NewsService
	renderer  *Renderer
	clock     clock.Clock
	baseURL   string
	threshold float64
	live      bool
	assetsDir string
	loading   time.Duration
	logger    zerolog.Logger

	pages chi.Router
}

// NewServer wires the page routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Site == nil || opts.News == nil || opts.Renderer == nil {
		return nil, errors.New("web: site, news and renderer are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.RevealThreshold <= 0 || opts.RevealThreshold > 1 {
		opts.RevealThreshold = reveal.DefaultThreshold
	}
	if opts.Loading <= 0 {
		opts.Loading = DefaultLoading
	}
	logger := xglog.WithComponent("web")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Server{
		site:      opts.Site,
		news:      opts.News,
		renderer:  opts.Renderer,
		clock:     opts.Clock,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		threshold: opts.RevealThreshold,
		live:      opts.Live,
		assetsDir: opts.AssetsDir,
		loading:   opts.Loading,
		logger:    logger,
	}
	s.pages = s.routes()
	return s, nil
}

// Pages is the page router without the ingress middleware.
func (s *Server) Pages() http.Handler { return s.pages }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleHome)
	r.Get("/menu", s.handleMenu)
	r.Get("/menu/items", s.handleMenuItems)
	r.Get("/news", s.handleNewsList)
	r.Get("/news/{id}", s.handleArticle)
	r.Get("/rss.xml", s.handleFeed)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/manifest.webmanifest", s.handleManifest)
	r.Get("/robots.txt", s.handleRobots)

	static, err := fs.Sub(assets, "static")
	if err == nil {
		r.Handle("/static/*", cacheFor(86400, http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	}
	if s.assetsDir != "" {
		if info, err := os.Stat(s.assetsDir); err == nil && info.IsDir() {
			r.Handle("/images/*", cacheFor(604800, http.StripPrefix("/images/", http.FileServer(http.Dir(s.assetsDir)))))
		} else {
			s.logger.Warn().Str(xglog.FieldEvent, "web.assets_missing").Str(xglog.FieldPath, s.assetsDir).Msg("assets directory not found, /images disabled")
		}
	}

	r.NotFound(s.handleNotFound)
	return r
}

func cacheFor(seconds int, next http.Handler) http.Handler {
	value := "public, max-age=" + itoa(seconds)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}

func isFragment(r *http.Request) bool {
	return r.Header.Get(HeaderFragment) != ""
}

// origin is the configured base URL or the request's own origin.
func (s *Server) origin(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func (s *Server) view(r *http.Request, title, description string, data any) View {
	if description == "" {
		description = s.site.Store.Description
	}
	canonical := ""
	if o := s.origin(r); o != "" {
		canonical = o + r.URL.EscapedPath()
	}
	return View{
		Title:       title,
		Description: description,
		Path:        requestPath(r.URL),
		Canonical:   canonical,
		Store:       s.site.Store,
		Year:        s.clock.Now().In(content.Tokyo).Year(),
		Reveal:      s.threshold,
		Live:        s.live,
		LoadingMS:   s.loading.Milliseconds(),
		Data:        data,
	}
}

func (s *Server) title(prefix string) string {
	if prefix == "" {
		return s.site.Store.Name + " | " + s.site.Store.Tagline
	}
	return prefix + " | " + s.site.Store.Name
}

// render writes page with status. Fragment requests get the content block
// and the title in a header.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, status int, state string, v View) {
	fragment := isFragment(r)
	body, err := s.renderer.Render(page, v, fragment)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "web.render_failed").
			Str("page", page).
			Str(xglog.FieldRequestID, xglog.RequestIDFromContext(r.Context())).
			Msg("template render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	metrics.IncPageRender(page, state)

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Add("Vary", HeaderFragment)
	if fragment {
		h.Set(HeaderTitle, url.PathEscape(v.Title))
	}
	if status >= http.StatusInternalServerError {
		h.Set("Cache-Control", "no-store")
		h.Set("Retry-After", "60")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
