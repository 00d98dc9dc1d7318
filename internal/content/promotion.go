// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"fmt"
	"html/template"
	"net/url"
	"time"
)

const defaultRotateEvery = 6 * time.Second

// Slide is one image of a promotion carousel.
type Slide struct {
	Src string `yaml:"src"`
	Alt string `yaml:"alt"`
}

// Feature is a highlighted detail of a promotion.
type Feature struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// Promotion is seasonal copy shown on the home page during [Start, End).
// Link points at an external shop and always opens in a new tab, so it
// never goes through the page transition.
type Promotion struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Body        string        `yaml:"body"`
	Link        string        `yaml:"link"`
	LinkLabel   string        `yaml:"linkLabel"`
	Start       time.Time     `yaml:"start"`
	End         time.Time     `yaml:"end"`
	RotateEvery time.Duration `yaml:"rotateEvery"`
	Images      []Slide       `yaml:"images"`
	Features    []Feature     `yaml:"features"`

	HTML template.HTML `yaml:"-"`
}

// Active reports whether now falls inside the promotion window.
func (p Promotion) Active(now time.Time) bool {
	return !now.Before(p.Start) && now.Before(p.End)
}

// RotateMillis is the carousel interval for the client.
func (p Promotion) RotateMillis() int64 { return p.RotateEvery.Milliseconds() }

// Promotions is the set of configured promotions in file order.
type Promotions struct {
	items []Promotion
}

type promotionsFile struct {
	Promotions []Promotion `yaml:"promotions"`
}

// LoadPromotions parses the embedded promotions.
func LoadPromotions() (*Promotions, error) {
	data, err := dataFS.ReadFile("data/promotions.yaml")
	if err != nil {
		return nil, fmt.Errorf("read promotions: %w", err)
	}
	return ParsePromotions(data)
}

// ParsePromotions decodes promotions strictly and renders their copy.
func ParsePromotions(data []byte) (*Promotions, error) {
	var f promotionsFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse promotions: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Promotions))
	for i := range f.Promotions {
		p := &f.Promotions[i]
		if p.ID == "" {
			return nil, fmt.Errorf("parse promotions: entry %d has no id", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("parse promotions: duplicate id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if !p.End.After(p.Start) {
			return nil, fmt.Errorf("parse promotions: %s: end must be after start", p.ID)
		}
		if p.Link != "" {
			u, err := url.Parse(p.Link)
			if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
				return nil, fmt.Errorf("parse promotions: %s: link must be an absolute http(s) url", p.ID)
			}
		}
		if p.RotateEvery <= 0 {
			p.RotateEvery = defaultRotateEvery
		}
		html, err := renderMarkdown(p.Body)
		if err != nil {
			return nil, fmt.Errorf("parse promotions: %s: %w", p.ID, err)
		}
		p.HTML = html
	}
	return &Promotions{items: f.Promotions}, nil
}

// Active returns the promotions running at now.
func (ps *Promotions) Active(now time.Time) []Promotion {
	var out []Promotion
	for _, p := range ps.items {
		if p.Active(now) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every configured promotion.
func (ps *Promotions) All() []Promotion {
	return append([]Promotion(nil), ps.items...)
}
