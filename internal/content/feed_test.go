// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestBuildFeed_Items(t *testing.T) {
	l := Listing{
		Posts: []Post{{
			ID:          "a1",
			Title:       "お花見 & 宴会",
			Description: "<b>春</b>のご案内",
			PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}},
		Outcome: Outcome{State: StateOK},
	}
	out, err := BuildFeed("https://kamiya.example/", l, buildTime)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, s, `xmlns:atom="http://www.w3.org/2005/Atom"`)
	assert.Contains(t, s, `<atom:link href="https://kamiya.example/rss.xml" rel="self" type="application/rss+xml"></atom:link>`)
	assert.Contains(t, s, "<title>お花見 &amp; 宴会</title>")
	assert.Contains(t, s, "&lt;b&gt;春&lt;/b&gt;のご案内")
	assert.Contains(t, s, `<guid isPermaLink="true">https://kamiya.example/news/a1</guid>`)
	assert.Contains(t, s, "<pubDate>Sun, 01 Mar 2026 09:00:00 GMT</pubDate>")
	assert.Contains(t, s, "<lastBuildDate>Fri, 02 Jan 2026 03:04:05 GMT</lastBuildDate>")
	assert.Contains(t, s, "<language>ja</language>")
}

func TestBuildFeed_FailureIsBareChannel(t *testing.T) {
	out, err := BuildFeed("https://kamiya.example", Listing{Outcome: Outcome{State: StateMaintenance, Status: 500}}, buildTime)
	require.NoError(t, err)

	var doc struct {
		Channel struct {
			Title    string     `xml:"title"`
			Language string     `xml:"language"`
			Items    []struct{} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, FeedTitle, doc.Channel.Title)
	assert.Empty(t, doc.Channel.Language)
	assert.Empty(t, doc.Channel.Items)
}

func TestBuildSitemap(t *testing.T) {
	l := Listing{
		Posts: []Post{
			{ID: "a", UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "b", PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		Outcome: Outcome{State: StateOK},
	}
	out, err := BuildSitemap("https://kamiya.example", l, buildTime)
	require.NoError(t, err)

	var set struct {
		URLs []struct {
			Loc        string `xml:"loc"`
			LastMod    string `xml:"lastmod"`
			ChangeFreq string `xml:"changefreq"`
			Priority   string `xml:"priority"`
		} `xml:"url"`
	}
	require.NoError(t, xml.Unmarshal(out, &set))

	type row struct{ Loc, LastMod, Freq, Prio string }
	var got []row
	for _, u := range set.URLs {
		got = append(got, row{u.Loc, u.LastMod, u.ChangeFreq, u.Priority})
	}
	want := []row{
		{"https://kamiya.example", "2026-01-02T03:04:05Z", "weekly", "1.0"},
		{"https://kamiya.example/news", "2026-01-02T03:04:05Z", "weekly", "0.8"},
		{"https://kamiya.example/news/a", "2026-02-01T00:00:00Z", "monthly", "0.6"},
		{"https://kamiya.example/news/b", "2026-01-01T00:00:00Z", "monthly", "0.6"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sitemap mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSitemap_FailureKeepsStaticPages(t *testing.T) {
	out, err := BuildSitemap("https://kamiya.example", Listing{Outcome: Outcome{State: StateMaintenance}}, buildTime)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<loc>https://kamiya.example/news</loc>")
	assert.NotContains(t, string(out), "/news/")
}
