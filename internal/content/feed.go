// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"
)

// Feed channel copy.
const (
	FeedTitle       = "割烹 神谷 - お知らせ"
	FeedDescription = "三代続く川口の老舗割烹料理店「割烹 神谷」からのお知らせ"
	FeedLanguage    = "ja"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr,omitempty"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	AtomLink      *atomLink `xml:"atom:link,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// BuildFeed renders an RSS 2.0 document for posts. A failed fetch is served
// as a bare channel without items, so readers keep polling.
func BuildFeed(baseURL string, l Listing, now time.Time) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	ch := rssChannel{
		Title:       FeedTitle,
		Link:        base,
		Description: FeedDescription,
	}
	doc := rssDoc{Version: "2.0"}
	if l.Outcome.State == StateOK || (l.Outcome.State == StateEmpty && !l.Outcome.RetryHint) {
		doc.Atom = "http://www.w3.org/2005/Atom"
		ch.Language = FeedLanguage
		ch.AtomLink = &atomLink{Href: base + "/rss.xml", Rel: "self", Type: "application/rss+xml"}
		ch.LastBuildDate = now.UTC().Format(http.TimeFormat)
		for _, p := range l.Posts {
			link := base + "/news/" + p.ID
			ch.Items = append(ch.Items, rssItem{
				Title:       p.Title,
				Link:        link,
				GUID:        rssGUID{IsPermaLink: true, Value: link},
				Description: p.Description,
				PubDate:     p.PublishedAt.UTC().Format(http.TimeFormat),
			})
		}
	}
	doc.Channel = ch
	return marshalXML(doc)
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// BuildSitemap lists the static pages and every post in l. Posts are
// skipped when the fetch failed; the static pages are always present.
func BuildSitemap(baseURL string, l Listing, now time.Time) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	today := now.UTC().Format(time.RFC3339)
	set := urlSet{
		NS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: base, LastMod: today, ChangeFreq: "weekly", Priority: "1.0"},
			{Loc: base + "/news", LastMod: today, ChangeFreq: "weekly", Priority: "0.8"},
		},
	}
	for _, p := range l.Posts {
		u := sitemapURL{Loc: base + "/news/" + p.ID, ChangeFreq: "monthly", Priority: "0.6"}
		switch {
		case !p.UpdatedAt.IsZero():
			u.LastMod = p.UpdatedAt.UTC().Format(time.RFC3339)
		case !p.PublishedAt.IsZero():
			u.LastMod = p.PublishedAt.UTC().Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, u)
	}
	return marshalXML(set)
}

func marshalXML(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
