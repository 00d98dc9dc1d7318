// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// MenuItem is one dish or course.
type MenuItem struct {
	ID          int    `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Image       string `yaml:"image"`
	Category    string `yaml:"category"`
}

type menuFile struct {
	Categories []string   `yaml:"categories"`
	Items      []MenuItem `yaml:"items"`
}

// Menu is the catalog with categories in display order.
type Menu struct {
	categories []string
	byCategory map[string][]MenuItem
	count      int
}

// LoadMenu parses the embedded catalog.
func LoadMenu() (*Menu, error) {
	data, err := dataFS.ReadFile("data/menu.yaml")
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	return ParseMenu(data)
}

// ParseMenu decodes a catalog strictly: unknown keys, unknown categories and
// duplicate ids are errors.
func ParseMenu(data []byte) (*Menu, error) {
	var f menuFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("parse menu: no categories")
	}

	m := &Menu{byCategory: make(map[string][]MenuItem, len(f.Categories))}
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, errors.New("parse menu: empty category name")
		}
		if _, dup := m.byCategory[c]; dup {
			return nil, fmt.Errorf("parse menu: duplicate category %q", c)
		}
		m.categories = append(m.categories, c)
		m.byCategory[c] = nil
	}

	seen := make(map[int]struct{}, len(f.Items))
	for _, it := range f.Items {
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("parse menu: duplicate item id %d", it.ID)
		}
		seen[it.ID] = struct{}{}
		if _, ok := m.byCategory[it.Category]; !ok {
			return nil, fmt.Errorf("parse menu: item %d has unknown category %q", it.ID, it.Category)
		}
		m.byCategory[it.Category] = append(m.byCategory[it.Category], it)
	}
	m.count = len(f.Items)
	return m, nil
}

// Categories returns the category names in display order.
func (m *Menu) Categories() []string {
	return append([]string(nil), m.categories...)
}

// Items returns the items of category and the category actually used. An
// empty or unknown category selects the first one.
func (m *Menu) Items(category string) (string, []MenuItem) {
	if _, ok := m.byCategory[category]; !ok {
		category = m.categories[0]
	}
	return category, append([]MenuItem(nil), m.byCategory[category]...)
}

// Len is the number of items across all categories.
func (m *Menu) Len() int { return m.count }

// decodeStrict decodes exactly one YAML document and rejects unknown keys.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple documents or trailing content")
	}
	return nil
}
