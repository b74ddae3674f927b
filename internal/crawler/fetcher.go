package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/siteaudit/internal/common"
)

// Fetcher wraps the HTTP access the crawl phases need: a full-body GET for
// internal pages, a lightweight existence check for external links, an
// optional per-host politeness limiter and optional robots.txt gating.
//
// The internal page client carries no timeout while existence checks run
// under per-attempt context deadlines. That asymmetry is deliberate and
// matches the audit semantics: a slow internal page is still a page worth
// waiting for, a slow external host is a TIMEOUT finding.
type Fetcher struct {
	pageClient  *http.Client
	checkClient *http.Client
	limiter     *rate.Limiter
	userAgent   string
	logger      arbor.ILogger

	robotsMu sync.RWMutex
	robots   *robotstxt.Group
}

// NewFetcher creates a fetcher from the crawler configuration.
func NewFetcher(config common.CrawlerConfig, logger arbor.ILogger) *Fetcher {
	f := &Fetcher{
		pageClient:  &http.Client{},
		checkClient: &http.Client{},
		userAgent:   config.UserAgent,
		logger:      logger,
	}
	if config.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return f
}

// LoadRobots fetches and parses robots.txt for the seed URL's host. Any
// failure leaves the fetcher permissive; robots gating is best-effort.
func (f *Fetcher) LoadRobots(ctx context.Context, seedURL string) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return
	}
	robotsURL := seed.Scheme + "://" + seed.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.checkClient.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt not loaded")
		return
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", robotsURL).Msg("Failed to parse robots.txt")
		return
	}

	f.robotsMu.Lock()
	f.robots = data.FindGroup(f.userAgent)
	f.robotsMu.Unlock()
	f.logger.Info().Str("url", robotsURL).Msg("robots.txt loaded")
}

// Allowed reports whether robots.txt permits fetching the URL. Always true
// when robots gating is disabled or robots.txt could not be loaded.
func (f *Fetcher) Allowed(pageURL string) bool {
	f.robotsMu.RLock()
	group := f.robots
	f.robotsMu.RUnlock()
	if group == nil {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// FetchPage performs a full-body GET of an internal page. The returned
// status is 0 when the request failed before an HTTP response arrived.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (int, []byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.pageClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}
	return resp.StatusCode, body, nil
}

// CheckExists performs a lightweight existence check against an external
// link: HEAD first, falling back to GET when the server rejects HEAD. The
// body is never read. Timeout control comes from the caller's context.
func (f *Fetcher) CheckExists(ctx context.Context, linkURL string) (int, error) {
	status, err := f.doCheck(ctx, http.MethodHead, linkURL)
	if err != nil {
		return 0, err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		return f.doCheck(ctx, http.MethodGet, linkURL)
	}
	return status, nil
}

func (f *Fetcher) doCheck(ctx context.Context, method, linkURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, linkURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.checkClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, nil
}
