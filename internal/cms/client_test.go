// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/kamiya/internal/cache"
	"github.com/ManuGH/kamiya/internal/cms/cmstest"
	"github.com/ManuGH/kamiya/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret-key-123"

func newTestClient(t *testing.T, srv *cmstest.Server, mutate func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:        srv.BaseURL(),
		APIKey:         testKey,
		Timeout:        2 * time.Second,
		RateLimit:      1000,
		RateLimitBurst: 1000,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

type post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestGet_ListAndQuery(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.List("/news", post{ID: "a", Title: "年末年始の営業について"}, post{ID: "b", Title: "おせち予約開始"})

	c := newTestClient(t, srv, nil)
	res, err := c.Get(context.Background(), "news", Query{
		Fields: []string{"id", "title", "publishedAt", "thumbnail"},
		Limit:  5,
		Orders: "-publishedAt",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)

	var items []post
	require.NoError(t, res.Decode(&items))
	assert.Equal(t, "おせち予約開始", items[1].Title)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, testKey, reqs[0].APIKey)
	assert.Equal(t, "fields=id%2Ctitle%2CpublishedAt%2Cthumbnail&limit=5&orders=-publishedAt", reqs[0].Query)
}

func TestGet_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusInternalServerError, ErrUpstreamError},
		{http.StatusServiceUnavailable, ErrUpstreamError},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv := cmstest.New(testKey)
			defer srv.Close()
			srv.Handle("/news", cmstest.Response{Status: tt.status, Body: `{"message":"x"}`})

			c := newTestClient(t, srv, nil)
			_, err := c.Get(context.Background(), "news", Query{})
			require.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.status >= 500, IsTransient(err))
		})
	}
}

func TestGet_TransportFailure(t *testing.T) {
	srv := cmstest.New(testKey)
	base := srv.BaseURL()
	srv.Close()

	c, err := New(Options{BaseURL: base, APIKey: testKey})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "news", Query{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, StatusOf(err))
	assert.True(t, IsTransient(err))
}

func TestGet_Timeout(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Body: `{"contents":[]}`, Delay: time.Second})

	c := newTestClient(t, srv, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	_, err := c.Get(context.Background(), "news", Query{})
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTransient(err))
}

func TestGet_MalformedBody(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Body: `<html>`})

	c := newTestClient(t, srv, nil)
	_, err := c.Get(context.Background(), "news", Query{})
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Status: http.StatusBadRequest, Body: `{}`})

	c := newTestClient(t, srv, func(o *Options) {
		o.Breaker = resilience.NewCircuitBreaker("cms_test_4xx", 2, time.Minute,
			resilience.WithFailurePredicate(countsAgainstBreaker))
	})
	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), "news", Query{})
		require.ErrorIs(t, err, ErrBadRequest)
	}
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())

	srv.Handle("/news", cmstest.Response{Status: http.StatusBadGateway, Body: `{}`})
	for i := 0; i < 2; i++ {
		_, _ = c.Get(context.Background(), "news", Query{})
	}
	require.Equal(t, resilience.StateOpen, c.Breaker().State())

	before := srv.Count("/news")
	_, err := c.Get(context.Background(), "news", Query{})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsTransient(err))
	assert.Equal(t, before, srv.Count("/news"), "open circuit does not reach upstream")
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Body: `{"contents":[]}`, Delay: time.Second})

	c := newTestClient(t, srv, func(o *Options) {
		o.Breaker = resilience.NewCircuitBreaker("cms_test_cancel", 1, time.Minute,
			resilience.WithFailurePredicate(countsAgainstBreaker))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "news", Query{})
	require.Error(t, err)
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())
}

func TestCache_HitAvoidsUpstream(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.List("/news", post{ID: "a"})

	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	c := newTestClient(t, srv, func(o *Options) { o.Cache = mem })

	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "news", Query{Limit: 5})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Count("/news"))

	// A different query is a different key.
	_, err := c.Get(context.Background(), "news", Query{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Count("/news"))
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Status: http.StatusInternalServerError})

	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	c := newTestClient(t, srv, func(o *Options) { o.Cache = mem })

	_, err := c.Get(context.Background(), "news", Query{})
	require.Error(t, err)

	srv.List("/news", post{ID: "a"})
	res, err := c.Get(context.Background(), "news", Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
}

func TestConcurrentReadsHitUpstreamOnce(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	gate := make(chan struct{})
	body, _ := json.Marshal(map[string]any{"contents": []post{{ID: "a"}}, "totalCount": 1})
	srv.Handle("/news", cmstest.Response{Body: string(body), Gate: gate})

	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	c := newTestClient(t, srv, func(o *Options) { o.Cache = mem })

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Get(context.Background(), "news", Query{Limit: 5})
			if err == nil && res.TotalCount != 1 {
				err = fmt.Errorf("unexpected total %d", res.TotalCount)
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return srv.Count("/news") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Count("/news"))
}

func TestCoalescedReadSurvivesFirstCallerCancel(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	gate := make(chan struct{})
	srv.Handle("/news", cmstest.Response{Body: `{"contents":[],"totalCount":0}`, Gate: gate})

	c := newTestClient(t, srv, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(first, "news", Query{})
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return srv.Count("/news") == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "news", Query{})
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gate)
	select {
	case err := <-secondErr:
		require.NoError(t, err, "a waiting caller must not inherit another caller's cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("coalesced caller never returned")
	}
	assert.Equal(t, 1, srv.Count("/news"))
}

func TestErrorsRedactAPIKey(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.Handle("/news", cmstest.Response{Status: http.StatusBadRequest, Body: `{"message":"bad key ` + testKey + `"}`})

	c := newTestClient(t, srv, nil)
	_, err := c.Get(context.Background(), "news", Query{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.Contains(t, err.Error(), "***")
}

func TestGetContent(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()
	srv.JSON("/news/abc", http.StatusOK, post{ID: "abc", Title: "おせち"})

	c := newTestClient(t, srv, nil)
	raw, err := c.GetContent(context.Background(), "news", "abc", Query{})
	require.NoError(t, err)
	var p post
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "おせち", p.Title)

	_, err = c.GetContent(context.Background(), "news", "missing", Query{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetContent(context.Background(), "news", " ", Query{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAllContentIDs_Pages(t *testing.T) {
	srv := cmstest.New(testKey)
	defer srv.Close()

	const total = 230
	srv.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var items []post
		for i := offset; i < total && i < offset+limit; i++ {
			items = append(items, post{ID: fmt.Sprintf("n%03d", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"contents": items, "totalCount": total, "offset": offset, "limit": limit})
	})

	c := newTestClient(t, srv, nil)
	ids, err := c.AllContentIDs(context.Background(), "news")
	require.NoError(t, err)
	require.Len(t, ids, total)
	assert.Equal(t, "n000", ids[0])
	assert.Equal(t, "n229", ids[total-1])
	assert.Equal(t, 3, srv.Count("/news"))
}

func TestNew_RequiresBase(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	c, err := New(Options{ServiceDomain: "kamiya"})
	require.NoError(t, err)
	assert.Equal(t, "https://kamiya.microcms.io/api/v1", c.base)
}
