// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cms is a client for a microCMS-style headless CMS REST API.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/kamiya/internal/cache"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/ManuGH/kamiya/internal/resilience"
	"github.com/ManuGH/kamiya/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-MICROCMS-API-KEY"

const (
	defaultTimeout        = 10 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
	defaultCacheTTL       = 60 * time.Second
	maxBodyBytes          = 8 << 20
	idPageSize            = 100
)

// Options configures the CMS client.
type Options struct {
	// BaseURL wins over ServiceDomain when both are set.
	BaseURL       string
	ServiceDomain string
	APIKey        string
	Timeout       time.Duration

	RateLimit      rate.Limit
	RateLimitBurst int

	BreakerThreshold int
	BreakerReset     time.Duration

	Cache    cache.Cache
	CacheTTL time.Duration

	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Logger     *zerolog.Logger
}

// Client reads content from the CMS. It never retries: a failed read is
// reported to the caller, which picks the page state.
type Client struct {
	base     string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	cache    cache.Cache
	cacheTTL time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
}

// BaseURLForDomain returns the API root of a hosted service domain.
func BaseURLForDomain(domain string) string {
	return "https://" + domain + ".microcms.io/api/v1"
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" && opts.ServiceDomain != "" {
		base = BaseURLForDomain(opts.ServiceDomain)
	}
	if base == "" {
		return nil, errors.New("cms: base url or service domain is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("cms: invalid base url: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoOpCache()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("cms", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailurePredicate(countsAgainstBreaker))
	}
	logger := xglog.WithComponent("cms")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		base:     base,
		apiKey:   opts.APIKey,
		http:     opts.HTTPClient,
		limiter:  rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		breaker:  opts.Breaker,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger,
	}, nil
}

// Breaker exposes the circuit breaker for readiness checks.
func (c *Client) Breaker() *resilience.CircuitBreaker { return c.breaker }

// Get lists contents of endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, q Query) (*ListResponse, error) {
	body, err := c.read(ctx, endpoint, endpoint, q.Values())
	if err != nil {
		return nil, err
	}
	var out ListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Endpoint: endpoint, Err: err}
	}
	return &out, nil
}

// GetContent fetches a single content item by id.
func (c *Client) GetContent(ctx context.Context, endpoint, id string, q Query) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &Error{Sentinel: ErrNotFound, Endpoint: endpoint}
	}
	body, err := c.read(ctx, endpoint, endpoint+"/"+url.PathEscape(id), q.Values())
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &Error{Sentinel: ErrBadResponse, Endpoint: endpoint, Err: errors.New("invalid json")}
	}
	return json.RawMessage(body), nil
}

// AllContentIDs pages through endpoint and returns every content id.
func (c *Client) AllContentIDs(ctx context.Context, endpoint string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += idPageSize {
		page, err := c.Get(ctx, endpoint, Query{Fields: []string{"id"}, Limit: idPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		var items []struct {
			ID string `json:"id"`
		}
		if err := page.Decode(&items); err != nil {
			return nil, &Error{Sentinel: ErrBadResponse, Endpoint: endpoint, Err: err}
		}
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if len(items) == 0 || offset+len(items) >= page.TotalCount {
			return ids, nil
		}
	}
}

// read serves from cache, coalesces identical in-flight reads and caches
// successful bodies.
func (c *Client) read(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	key := path
	if enc := params.Encode(); enc != "" {
		key += "?" + enc
	}
	if body, ok := c.cache.Get(key); ok {
		metrics.ObserveCMSRequest(endpoint, "cache_hit", 0)
		return body, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, transportError(endpoint, err)
	}

	// The shared read outlives any single caller; the client timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		body, err := c.fetch(fetchCtx, endpoint, path, params)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, body, c.cacheTTL)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, transportError(endpoint, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug().Str(xglog.FieldEvent, "cms.coalesced").Str(xglog.FieldEndpoint, endpoint).Msg("served from shared in-flight read")
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) fetch(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.do(ctx, endpoint, path, params)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.ObserveCMSRequest(endpoint, "circuit_open", 0)
		err = &Error{Sentinel: ErrCircuitOpen, Endpoint: endpoint, Err: err}
	}
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "cms.fetch_failed").
			Str(xglog.FieldEndpoint, endpoint).
			Int(xglog.FieldStatus, StatusOf(err)).
			Msg("cms read failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	ctx, span := telemetry.Tracer("kamiya.cms").Start(ctx, "kamiya.cms.get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveCMSRequest(endpoint, "transport", 0)
		return nil, transportError(endpoint, err)
	}

	rawURL := c.base + "/" + strings.TrimLeft(path, "/")
	if enc := params.Encode(); enc != "" {
		rawURL += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Sentinel: ErrBadRequest, Endpoint: endpoint, Err: err}
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		cerr := transportError(endpoint, err)
		outcome := "transport"
		if errors.Is(cerr, ErrTimeout) {
			outcome = "timeout"
		}
		metrics.ObserveCMSRequest(endpoint, outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, cerr
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, "/"+endpoint, "/"+endpoint, resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		cerr := statusError(endpoint, resp.StatusCode, string(snippet), c.apiKey)
		metrics.ObserveCMSRequest(endpoint, outcomeForStatus(resp.StatusCode), elapsed)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, cerr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ObserveCMSRequest(endpoint, "transport", elapsed)
		span.RecordError(err)
		return nil, transportError(endpoint, err)
	}
	metrics.ObserveCMSRequest(endpoint, "ok", elapsed)
	span.SetAttributes(telemetry.CMSAttributes(endpoint, "ok", false)...)
	span.SetStatus(codes.Ok, "")
	c.logger.Debug().
		Str(xglog.FieldEvent, "cms.fetched").
		Str(xglog.FieldEndpoint, endpoint).
		Int("bytes", len(body)).
		Float64("seconds", elapsed).
		Msg("cms read")
	return body, nil
}

func outcomeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status >= http.StatusInternalServerError:
		return "server_error"
	default:
		return "client_error"
	}
}
