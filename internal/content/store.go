// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

// HoursRow is one line of the opening hours table.
type HoursRow struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
	Note  string `yaml:"note"`
}

// Access lists directions by means of travel.
type Access struct {
	Train []string `yaml:"train"`
	Car   []string `yaml:"car"`
}

// Hero is the top of the home page.
type Hero struct {
	Lines []string `yaml:"lines"`
	Image string   `yaml:"image"`
	Logo  string   `yaml:"logo"`
}

// Concept is the philosophy section. Body is markdown.
type Concept struct {
	Heading  string `yaml:"heading"`
	Image    string `yaml:"image"`
	ImageAlt string `yaml:"imageAlt"`
	Body     string `yaml:"body"`

	HTML template.HTML `yaml:"-"`
}

// NavLink is a header or footer link.
type NavLink struct {
	Href  string `yaml:"href"`
	Label string `yaml:"label"`
}

// Store is the restaurant's static information.
type Store struct {
	Name        string     `yaml:"name"`
	Tagline     string     `yaml:"tagline"`
	Description string     `yaml:"description"`
	PostalCode  string     `yaml:"postalCode"`
	Address     []string   `yaml:"address"`
	Phone       string     `yaml:"phone"`
	Hours       []HoursRow `yaml:"hours"`
	Access      Access     `yaml:"access"`
	MapTitle    string     `yaml:"mapTitle"`
	MapEmbedURL string     `yaml:"mapEmbedURL"`
	Hero        Hero       `yaml:"hero"`
	Concept     Concept    `yaml:"concept"`
	Navigation  []NavLink  `yaml:"navigation"`
}

// PhoneHref is the tel: link for Phone.
func (s *Store) PhoneHref() string {
	return "tel:" + strings.ReplaceAll(s.Phone, " ", "")
}

// LoadStore parses the embedded store information.
func LoadStore() (*Store, error) {
	data, err := dataFS.ReadFile("data/store.yaml")
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	return ParseStore(data)
}

// ParseStore decodes store information strictly and renders the concept copy.
func ParseStore(data []byte) (*Store, error) {
	var s Store
	if err := decodeStrict(data, &s); err != nil {
		return nil, fmt.Errorf("parse store: %w", err)
	}
	if strings.TrimSpace(s.Name) == "" {
		return nil, errors.New("parse store: name is required")
	}
	html, err := renderMarkdown(s.Concept.Body)
	if err != nil {
		return nil, fmt.Errorf("parse store: concept: %w", err)
	}
	s.Concept.HTML = html
	return &s, nil
}

var markdown = goldmark.New()

// renderMarkdown converts site copy to HTML. goldmark drops raw HTML unless
// the unsafe renderer option is set, so the output is safe to embed.
func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil // #nosec G203 -- raw HTML is not rendered
}
