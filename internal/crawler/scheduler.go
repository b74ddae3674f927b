// Package crawler implements the two crawl phases of an audit run: the
// internal crawl scheduler that drains the frontier, and the external link
// verification pool that checks outbound link health afterwards.
package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/common"
	"github.com/ternarybob/siteaudit/internal/models"
	"github.com/ternarybob/siteaudit/internal/store"
)

// Scheduler drains the frontier with a fixed pool of workers, fetching and
// parsing internal pages, recording link statistics and discovering new
// URLs until the frontier is exhausted or the page limit is reached.
type Scheduler struct {
	config     common.CrawlerConfig
	fetcher    *Fetcher
	classifier *Classifier
	frontier   *Frontier
	stateStore *store.StateStore
	cache      *store.PageCache
	logger     arbor.ILogger

	stateMu   sync.Mutex
	state     *models.CrawlState
	completed int
}

// NewScheduler creates a scheduler over the given crawl state. The page
// cache is optional; when present a PageRecord is stored for every
// successfully fetched page.
func NewScheduler(config common.CrawlerConfig, fetcher *Fetcher, classifier *Classifier, state *models.CrawlState, stateStore *store.StateStore, cache *store.PageCache, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:     config,
		fetcher:    fetcher,
		classifier: classifier,
		frontier:   NewFrontier(config.MaxPages),
		stateStore: stateStore,
		cache:      cache,
		state:      state,
		logger:     logger,
	}
}

// Run executes the internal crawl phase to completion. Workers stop when
// the frontier is empty with no fetch in flight, when the page limit is
// reached, or when the context is cancelled; in-flight fetches always
// finish and the final state is checkpointed either way.
func (s *Scheduler) Run(ctx context.Context) error {
	s.frontier.Restore(s.state.Visited.Values(), s.state.Frontier)

	workers := s.config.Concurrency
	if workers < 1 {
		workers = 1
	}

	s.logger.Info().
		Int("workers", workers).
		Int("max_pages", s.config.MaxPages).
		Int("frontier", s.frontier.Remaining()).
		Msg("Internal crawl phase starting")

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.frontier.Close()
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			s.workerLoop(ctx, index)
		}(i)
	}
	wg.Wait()
	close(watchDone)

	s.checkpoint()

	if remaining := s.frontier.Remaining(); remaining > 0 {
		s.logger.Info().
			Int("remaining", remaining).
			Int("processed", s.frontier.Processed()).
			Msg("Page limit reached, frontier URLs left unprocessed")
	}
	s.logger.Info().
		Int("processed", s.frontier.Processed()).
		Dur("duration", time.Since(start)).
		Msg("Internal crawl phase complete")

	return ctx.Err()
}

// PagesProcessed returns how many pages were handed to workers.
func (s *Scheduler) PagesProcessed() int {
	return s.frontier.Processed()
}

func (s *Scheduler) workerLoop(ctx context.Context, workerIndex int) {
	pages := 0
	defer func() {
		s.logger.Debug().
			Int("worker_index", workerIndex).
			Int("pages", pages).
			Msg("Worker exiting")
	}()

	for {
		pageURL, ok := s.frontier.Next()
		if !ok {
			return
		}

		s.processPage(ctx, pageURL)
		s.frontier.Done()
		pages++

		s.stateMu.Lock()
		s.completed++
		completed := s.completed
		s.stateMu.Unlock()

		if s.config.CheckpointEvery > 0 && completed%s.config.CheckpointEvery == 0 {
			s.checkpoint()
		}
	}
}

func (s *Scheduler) processPage(ctx context.Context, pageURL string) {
	if s.config.FollowRobotsTxt && !s.fetcher.Allowed(pageURL) {
		s.logger.Debug().Str("url", pageURL).Msg("Skipping URL disallowed by robots.txt")
		return
	}

	status, body, err := s.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Page fetch failed")
		s.stateMu.Lock()
		s.state.RecordBadRequest(pageURL, 0)
		s.stateMu.Unlock()
		return
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		s.logger.Warn().Str("url", pageURL).Int("status", status).Msg("Page returned non-success status")
		s.stateMu.Lock()
		s.state.RecordBadRequest(pageURL, status)
		s.stateMu.Unlock()
		return
	}

	page, err := ParsePage(body)
	if err != nil {
		// Parse failures never propagate; the crawl continues with
		// whatever other pages yield.
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Page could not be parsed")
		return
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Page URL unparsable, links skipped")
		return
	}

	internalLinks, externalLinks := 0, 0
	var discovered []string

	s.stateMu.Lock()
	s.state.RecordPageVisit(pageURL)
	for _, anchor := range page.Anchors {
		value, class, ok := s.classifier.Classify(base, anchor.Href)
		if !ok {
			continue
		}
		switch class {
		case LinkInternal:
			s.state.RecordInternalLink(value, anchor.Text, pageURL)
			discovered = append(discovered, value)
			internalLinks++
		case LinkExternal:
			s.state.RecordExternalLink(value, pageURL)
			externalLinks++
		case LinkMailto:
			s.state.RecordMailtoLink(value, pageURL)
		case LinkTel:
			s.state.RecordTelLink(value, pageURL)
		}
	}
	s.stateMu.Unlock()

	enqueued := 0
	for _, u := range discovered {
		if s.frontier.Add(u) {
			enqueued++
		}
	}

	s.logger.Debug().
		Str("url", pageURL).
		Int("status", status).
		Int("internal_links", internalLinks).
		Int("external_links", externalLinks).
		Int("enqueued", enqueued).
		Msg("Page processed")

	s.storePageRecord(pageURL, status, page.Title, internalLinks, externalLinks)
}

// storePageRecord writes the per-page data record consumed by downstream
// report and analyzer tooling. Failures are logged, never fatal.
func (s *Scheduler) storePageRecord(pageURL string, status int, title string, internalLinks, externalLinks int) {
	if s.cache == nil {
		return
	}
	record := models.PageRecord{
		URL:           pageURL,
		StatusCode:    status,
		Title:         title,
		InternalLinks: internalLinks,
		ExternalLinks: externalLinks,
		FetchedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Failed to marshal page record")
		return
	}
	if err := s.cache.Set(pageURL, data); err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Failed to store page record")
	}
}

// checkpoint syncs the frontier into the state document and persists it.
// Persistence failures are logged and the crawl continues.
func (s *Scheduler) checkpoint() {
	visited, pending := s.frontier.Snapshot()

	s.stateMu.Lock()
	s.state.Visited = models.NewStringSet(visited...)
	s.state.Frontier = pending
	err := s.stateStore.Save(s.state)
	s.stateMu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Msg("Checkpoint failed")
		return
	}
	s.logger.Debug().Int("visited", len(visited)).Int("frontier", len(pending)).Msg("State checkpointed")
}
