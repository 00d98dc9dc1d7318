// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package content turns CMS reads and embedded site data into page models.
package content

import (
	"context"
	"encoding/json"
	"html/template"
	"time"

	"github.com/ManuGH/kamiya/internal/cms"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

const (
	DefaultNewsEndpoint = "news"
	DefaultLatestLimit  = 5
	DefaultListLimit    = 100
	FeedLimit           = 50
	SitemapLimit        = 100

	newsOrder = "-publishedAt"
)

// Copy shown by the news views.
const (
	EmptyNewsText   = "現在お知らせはありません"
	RetryHintText   = "時間をおいて再度アクセスしてください"
	MaintenanceText = "ただいまお知らせを表示できません。システムメンテナンス中の可能性があります。"
)

var (
	listFields = []string{"id", "title", "publishedAt", "thumbnail"}
	feedFields = []string{"id", "title", "description", "publishedAt", "updatedAt"}
	mapFields  = []string{"id", "publishedAt", "updatedAt"}
)

// Source is the slice of the CMS client the news service reads through.
type Source interface {
	Get(ctx context.Context, endpoint string, q cms.Query) (*cms.ListResponse, error)
	GetContent(ctx context.Context, endpoint, id string, q cms.Query) (json.RawMessage, error)
	AllContentIDs(ctx context.Context, endpoint string) ([]string, error)
}

// Image is a CMS media reference.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Alt    string `json:"alt,omitempty"`
}

// Category is a CMS category reference.
type Category struct {
	Name string `json:"name"`
}

// Post is one news entry.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Thumbnail   *Image    `json:"thumbnail,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Content     string    `json:"content,omitempty"`

	// Body is Content after sanitising, safe to render.
	Body template.HTML `json:"-"`
}

// ListDate formats the publish date for lists (YY.MM.DD).
func (p Post) ListDate() string { return FormatListDate(p.PublishedAt) }

// ArticleDate formats the publish date for the article header.
func (p Post) ArticleDate() string { return FormatArticleDate(p.PublishedAt) }

// Listing is a news list together with its triage.
type Listing struct {
	Posts   []Post
	Total   int
	Outcome Outcome
}

// Article is a single post together with its triage.
type Article struct {
	Post    *Post
	Outcome Outcome
}

// NewsOptions configures a NewsService.
type NewsOptions struct {
	Source      Source
	Endpoint    string
	LatestLimit int
	ListLimit   int
	Logger      *zerolog.Logger
}

// NewsService reads news posts for the home page, the list page, articles,
// the feed and the sitemap.
type NewsService struct {
	src         Source
	endpoint    string
	latestLimit int
	listLimit   int
	policy      *bluemonday.Policy
	logger      zerolog.Logger
}

// NewNewsService applies defaults to opts.
func NewNewsService(opts NewsOptions) *NewsService {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultNewsEndpoint
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = DefaultLatestLimit
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}
	logger := xglog.WithComponent("content")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &NewsService{
		src:         opts.Source,
		endpoint:    opts.Endpoint,
		latestLimit: opts.LatestLimit,
		listLimit:   opts.ListLimit,
		policy:      articlePolicy(),
		logger:      logger,
	}
}

// Latest returns the newest posts for the home page.
func (s *NewsService) Latest(ctx context.Context) Listing {
	return s.list(ctx, "latest", cms.Query{Fields: listFields, Limit: s.latestLimit, Orders: newsOrder})
}

// All returns the posts for the news list page.
func (s *NewsService) All(ctx context.Context) Listing {
	return s.list(ctx, "all", cms.Query{Fields: listFields, Limit: s.listLimit, Orders: newsOrder})
}

// Feed returns the posts published in the RSS feed.
func (s *NewsService) Feed(ctx context.Context) Listing {
	return s.list(ctx, "feed", cms.Query{Fields: feedFields, Limit: FeedLimit, Orders: newsOrder})
}

// Updates returns id and timestamps of posts for the sitemap.
func (s *NewsService) Updates(ctx context.Context) Listing {
	return s.list(ctx, "sitemap", cms.Query{Fields: mapFields, Limit: SitemapLimit})
}

// IDs returns every post id.
func (s *NewsService) IDs(ctx context.Context) ([]string, error) {
	return s.src.AllContentIDs(ctx, s.endpoint)
}

// Article returns one post with its body sanitised.
func (s *NewsService) Article(ctx context.Context, id string) Article {
	raw, err := s.src.GetContent(ctx, s.endpoint, id, cms.Query{})
	if err != nil {
		out := Classify(err, 0)
		s.logOutcome("article", out, err)
		return Article{Outcome: out}
	}
	var p Post
	if err := json.Unmarshal(raw, &p); err != nil {
		err = &cms.Error{Sentinel: cms.ErrBadResponse, Endpoint: s.endpoint, Err: err}
		out := Classify(err, 0)
		s.logOutcome("article", out, err)
		return Article{Outcome: out}
	}
	p.Body = template.HTML(s.policy.Sanitize(p.Content)) // #nosec G203 -- sanitised by bluemonday
	return Article{Post: &p, Outcome: Classify(nil, 1)}
}

func (s *NewsService) list(ctx context.Context, view string, q cms.Query) Listing {
	res, err := s.src.Get(ctx, s.endpoint, q)
	if err != nil {
		out := Classify(err, 0)
		s.logOutcome(view, out, err)
		return Listing{Outcome: out}
	}
	var posts []Post
	if err := res.Decode(&posts); err != nil {
		err = &cms.Error{Sentinel: cms.ErrBadResponse, Endpoint: s.endpoint, Err: err}
		out := Classify(err, 0)
		s.logOutcome(view, out, err)
		return Listing{Outcome: out}
	}
	return Listing{Posts: posts, Total: res.TotalCount, Outcome: Classify(nil, len(posts))}
}

func (s *NewsService) logOutcome(view string, out Outcome, err error) {
	s.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "content.degraded").
		Str("view", view).
		Str(xglog.FieldOutcome, out.State.String()).
		Int(xglog.FieldStatus, out.Status).
		Bool("retry_hint", out.RetryHint).
		Msg("news fetch degraded")
}

// articlePolicy allows the rich text the CMS editor produces and nothing
// executable.
func articlePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("span", "p", "div", "figure", "pre", "code")
	p.AllowElements("figure", "figcaption")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}
