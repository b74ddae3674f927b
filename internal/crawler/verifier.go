package crawler

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/common"
	"github.com/ternarybob/siteaudit/internal/models"
	"github.com/ternarybob/siteaudit/internal/store"
)

// Verifier checks the health of every external link discovered during the
// internal crawl. It runs strictly after that phase, over a single
// immutable pass of the pending set: no further discovery happens here.
type Verifier struct {
	config     common.VerifierConfig
	fetcher    *Fetcher
	retry      *RetryPolicy
	stateStore *store.StateStore
	logger     arbor.ILogger

	stateMu sync.Mutex
	state   *models.CrawlState
}

// NewVerifier creates a verification pool over the given crawl state.
func NewVerifier(config common.VerifierConfig, fetcher *Fetcher, state *models.CrawlState, stateStore *store.StateStore, logger arbor.ILogger) *Verifier {
	return &Verifier{
		config:     config,
		fetcher:    fetcher,
		retry:      NewRetryPolicy(config.RetryCount, config.RetryBackoff),
		stateStore: stateStore,
		state:      state,
		logger:     logger,
	}
}

// Run verifies every pending external link and records the final outcome of
// each. Already-verified records from a resumed run are left untouched.
// Returns the number of links checked in this pass.
func (v *Verifier) Run(ctx context.Context) (int, error) {
	pending := v.state.PendingExternals()
	if len(pending) == 0 {
		v.logger.Info().Msg("No pending external links to verify")
		return 0, ctx.Err()
	}

	workers := v.config.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	v.logger.Info().
		Int("links", len(pending)).
		Int("workers", workers).
		Dur("timeout", v.config.CheckTimeout).
		Int("retries", v.config.RetryCount).
		Msg("External verification phase starting")

	urls := make(chan string)
	go func() {
		defer close(urls)
		for _, u := range pending {
			select {
			case urls <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	checked := 0
	var checkedMu sync.Mutex
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range urls {
				outcome := v.retry.ExecuteWithRetry(ctx, v.logger, u, func() string {
					return v.checkOnce(ctx, u)
				})

				v.stateMu.Lock()
				if rec, ok := v.state.ExternalLinks[u]; ok {
					rec.Status = outcome
				}
				v.stateMu.Unlock()

				checkedMu.Lock()
				checked++
				checkedMu.Unlock()

				v.logger.Debug().Str("url", u).Str("status", outcome).Msg("External link checked")
			}
		}()
	}
	wg.Wait()

	v.stateMu.Lock()
	err := v.stateStore.Save(v.state)
	v.stateMu.Unlock()
	if err != nil {
		v.logger.Warn().Err(err).Msg("Failed to persist state after verification phase")
	}

	v.logger.Info().
		Int("checked", checked).
		Dur("duration", time.Since(start)).
		Msg("External verification phase complete")

	return checked, ctx.Err()
}

// checkOnce performs a single existence check under the per-attempt timeout
// and classifies the outcome: a decimal HTTP status, TIMEOUT, or
// FETCH_ERROR.
func (v *Verifier) checkOnce(ctx context.Context, linkURL string) string {
	timeout := v.config.CheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := v.fetcher.CheckExists(checkCtx, linkURL)
	if err != nil {
		if isTimeoutError(err) {
			return models.ExternalStatusTimeout
		}
		return models.ExternalStatusFetchError
	}
	return strconv.Itoa(status)
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
