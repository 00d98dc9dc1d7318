// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ManuGH/kamiya/internal/content"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// MenuView is the data of the menu browser.
type MenuView struct {
	Categories []string
	Selected   string
	Items      []content.MenuItem
}

// NewsView is the data of the news partials and pages.
type NewsView struct {
	Posts           []content.Post
	Post            *content.Post
	Outcome         content.Outcome
	EmptyText       string
	RetryText       string
	MaintenanceText string
}

// HomeView is the data of the home page.
type HomeView struct {
	Store      *content.Store
	Menu       MenuView
	News       NewsView
	Promotions []content.Promotion
}

func newsView(o content.Outcome) NewsView {
	return NewsView{
		Outcome:         o,
		EmptyText:       content.EmptyNewsText,
		RetryText:       content.RetryHintText,
		MaintenanceText: content.MaintenanceText,
	}
}

func (s *Server) menuView(category string) MenuView {
	selected, items := s.site.Menu.Items(category)
	return MenuView{Categories: s.site.Menu.Categories(), Selected: selected, Items: items}
}

// handleHome always answers 200; a degraded news fetch only changes the
// news section.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	latest := s.news.Latest(r.Context())
	nv := newsView(latest.Outcome)
	nv.Posts = latest.Posts

	data := HomeView{
		Store:      s.site.Store,
		Menu:       s.menuView(""),
		News:       nv,
		Promotions: s.site.Promotions.Active(s.clock.Now()),
	}
	s.render(w, r, PageHome, http.StatusOK, latest.Outcome.State.String(), s.view(r, s.title(""), "", data))
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	mv := s.menuView(r.URL.Query().Get("category"))
	s.render(w, r, PageMenu, http.StatusOK, content.StateOK.String(), s.view(r, s.title("お品書き"), "", mv))
}

// handleMenuItems serves the item list of one category for the tab shim.
func (s *Server) handleMenuItems(w http.ResponseWriter, r *http.Request) {
	mv := s.menuView(r.URL.Query().Get("category"))
	body, err := s.renderer.Partial(PageMenu, "menu_items", mv)
	if err != nil {
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "web.render_failed").Str("page", "menu_items").Msg("partial render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	metrics.IncPageRender("menu_items", content.StateOK.String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) handleNewsList(w http.ResponseWriter, r *http.Request) {
	l := s.news.All(r.Context())
	switch l.Outcome.State {
	case content.StateNotFound:
		s.notFound(w, r)
		return
	case content.StateMaintenance:
		s.maintenance(w, r, s.title("お知らせ一覧"))
		return
	}
	nv := newsView(l.Outcome)
	nv.Posts = l.Posts
	v := s.view(r, s.title("お知らせ一覧"), s.site.Store.Name+"からの最新のお知らせ一覧です。", nv)
	s.render(w, r, PageNewsList, http.StatusOK, l.Outcome.State.String(), v)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	a := s.news.Article(r.Context(), chi.URLParam(r, "id"))
	switch a.Outcome.State {
	case content.StateNotFound:
		s.notFound(w, r)
		return
	case content.StateMaintenance:
		s.maintenance(w, r, s.title("お知らせ"))
		return
	}
	nv := newsView(a.Outcome)
	nv.Post = a.Post
	title, desc := s.title("お知らせ"), ""
	if a.Post != nil {
		title = s.title(a.Post.Title)
		desc = a.Post.Description
	}
	s.render(w, r, PageArticle, http.StatusOK, a.Outcome.State.String(), s.view(r, title, desc, nv))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.notFound(w, r)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	v := s.view(r, s.title("ページが見つかりません"), "", nil)
	s.render(w, r, PageNotFound, http.StatusNotFound, content.StateNotFound.String(), v)
}

func (s *Server) maintenance(w http.ResponseWriter, r *http.Request, title string) {
	nv := newsView(content.Outcome{State: content.StateMaintenance})
	s.render(w, r, PageMaintenance, http.StatusServiceUnavailable, content.StateMaintenance.String(), s.view(r, title, "", nv))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	body, err := content.BuildFeed(s.origin(r), s.news.Feed(r.Context()), s.clock.Now())
	s.writeXML(w, r, body, err, "public, s-maxage=3600, stale-while-revalidate")
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body, err := content.BuildSitemap(s.origin(r), s.news.Updates(r.Context()), s.clock.Now())
	s.writeXML(w, r, body, err, "public, s-maxage=3600")
}

func (s *Server) writeXML(w http.ResponseWriter, r *http.Request, body []byte, err error, cacheControl string) {
	if err != nil {
		s.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "web.xml_failed").
			Str(xglog.FieldPath, r.URL.Path).
			Msg("xml document build failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl)
	_, _ = w.Write(body)
}

type manifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

type manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Orientation     string         `json:"orientation"`
	Icons           []manifestIcon `json:"icons"`
	Categories      []string       `json:"categories"`
	Lang            string         `json:"lang"`
	Dir             string         `json:"dir"`
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	m := manifest{
		Name:            s.site.Store.Name,
		ShortName:       strings.ReplaceAll(s.site.Store.Name, " ", ""),
		Description:     "埼玉県川口市の老舗割烹料理店。三代続く伝統と技術で作る本格的な日本料理をご堪能ください。",
		StartURL:        "/",
		Scope:           "/",
		Display:         "standalone",
		BackgroundColor: "#f7f4ed",
		ThemeColor:      "#8b4513",
		Orientation:     "portrait-primary",
		Icons: []manifestIcon{
			{Src: "/images/icon-192.png", Sizes: "192x192", Type: "image/png", Purpose: "maskable any"},
			{Src: "/images/icon-512.png", Sizes: "512x512", Type: "image/png", Purpose: "maskable any"},
		},
		Categories: []string{"food", "lifestyle", "business"},
		Lang:       "ja",
		Dir:        "ltr",
	}
	w.Header().Set("Content-Type", "application/manifest+json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "web.manifest_write_failed").Msg("manifest write failed")
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\nDisallow: /live\n")
	if o := s.origin(r); o != "" {
		b.WriteString("Sitemap: " + o + "/sitemap.xml\n")
	}
	_, _ = w.Write([]byte(b.String()))
}
