// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"net/url"
	"strings"
)

// Link describes an activated anchor as reported by the browser.
type Link struct {
	Href     string `json:"href"`
	Target   string `json:"target,omitempty"`
	Download bool   `json:"download,omitempty"`
	Meta     bool   `json:"meta,omitempty"`
	Ctrl     bool   `json:"ctrl,omitempty"`
	Shift    bool   `json:"shift,omitempty"`
	Alt      bool   `json:"alt,omitempty"`
	Button   int    `json:"button,omitempty"`
}

// Intent is a navigation the coordinator may act on.
type Intent struct {
	TargetPath string
	IsInternal bool
	Href       string
}

// Decision says how an activated link is handled.
type Decision string

const (
	// DecisionTransition plays the cover animation around the route change.
	DecisionTransition Decision = "transition"
	// DecisionPassthrough changes route immediately; the root page owns its entrance.
	DecisionPassthrough Decision = "passthrough"
	// DecisionBypass leaves the navigation to the browser.
	DecisionBypass Decision = "bypass"
)

// RootPath is the site root.
const RootPath = "/"

// Classify decides how a link activation on the page at current is handled.
// origin is the site's scheme://host.
func Classify(link Link, origin *url.URL, current string) (Intent, Decision) {
	intent := Intent{Href: link.Href}
	if strings.TrimSpace(link.Href) == "" || origin == nil {
		return intent, DecisionBypass
	}
	if link.Target != "" || link.Download || link.Meta || link.Ctrl || link.Shift || link.Alt || link.Button != 0 {
		return intent, DecisionBypass
	}

	u, err := origin.Parse(link.Href)
	if err != nil {
		return intent, DecisionBypass
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return intent, DecisionBypass
	}
	if !strings.EqualFold(u.Scheme, origin.Scheme) || !strings.EqualFold(u.Host, origin.Host) {
		return intent, DecisionBypass
	}

	intent.IsInternal = true
	intent.TargetPath = normalizePath(u)

	// An in-page anchor only scrolls.
	if u.Fragment != "" && stripQuery(intent.TargetPath) == stripQuery(current) {
		return intent, DecisionBypass
	}
	if u.Path == "" || u.Path == RootPath {
		return intent, DecisionPassthrough
	}
	return intent, DecisionTransition
}

// IsRoot reports whether path addresses the site root.
func IsRoot(path string) bool {
	return stripQuery(path) == RootPath || path == ""
}

func normalizePath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = RootPath
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func stripQuery(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
