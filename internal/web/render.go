// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/ManuGH/kamiya/internal/content"
	"github.com/ManuGH/kamiya/internal/nav"
)

//go:embed templates static
var assets embed.FS

// Page names.
const (
	PageHome        = "home"
	PageMenu        = "menu"
	PageNewsList    = "news_list"
	PageArticle     = "article"
	PageNotFound    = "not_found"
	PageMaintenance = "maintenance"
)

// Template entry points.
const (
	blockLayout  = "layout"
	blockContent = "content"
)

// View is what every page template receives.
type View struct {
	Title       string
	Description string
	Path        string
	Canonical   string
	Store       *content.Store
	Year        int
	Reveal      float64
	Live        bool
	LoadingMS   int64
	Data        any
}

// Renderer holds one parsed template set per page. Pages share the layout
// and partials but each defines its own "content" block.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(assets)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	base, err := template.New("base").Funcs(funcMap()).ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into a buffer, so a template error never leaves a
// half-written response. fragment renders only the content block.
func (r *Renderer) Render(page string, v View, fragment bool) ([]byte, error) {
	t, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	block := blockLayout
	if fragment {
		block = blockContent
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, v); err != nil {
		return nil, fmt.Errorf("render %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

// Partial executes a named partial of page without the layout.
func (r *Renderer) Partial(page, name string, data any) ([]byte, error) {
	t, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s/%s: %w", page, name, err)
	}
	return buf.Bytes(), nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"href":    safeHref,
		"isRoot":  nav.IsRoot,
		"stagger": stagger,
	}
}

// safeHref lets tel: and mailto: links through html/template's URL filter
// and replaces anything else that is not http(s) or relative.
func safeHref(raw string) template.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "tel", "mailto":
		return template.URL(raw) // #nosec G203 -- scheme checked above
	default:
		return "#"
	}
}

// stagger spreads reveal delays over list items, 100ms apart, capped.
func stagger(i int) int {
	d := i * 100
	if d > 500 {
		d = 500
	}
	return d
}
