package crawler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/models"
)

// RetryPolicy defines the external-check retry behavior. Only transient
// outcomes (TIMEOUT, FETCH_ERROR) are retried; any HTTP status, including
// 404 or 500, is conclusive and accepted on the first attempt.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	Backoff    time.Duration // delay between attempts
}

// NewRetryPolicy creates a retry policy from configuration values.
func NewRetryPolicy(maxRetries int, backoff time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// IsTransient reports whether an outcome classification may be retried.
func (p *RetryPolicy) IsTransient(status string) bool {
	return status == models.ExternalStatusTimeout || status == models.ExternalStatusFetchError
}

// ExecuteWithRetry runs check until it returns a conclusive outcome or the
// retry budget is spent. The final attempt's outcome is always returned,
// conclusive or not.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, linkURL string, check func() string) string {
	var status string
	attempts := p.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		status = check()
		if !p.IsTransient(status) {
			return status
		}
		if attempt == attempts {
			break
		}

		logger.Debug().
			Str("url", linkURL).
			Str("outcome", status).
			Int("attempt", attempt).
			Dur("backoff", p.Backoff).
			Msg("Transient check outcome, retrying after backoff")

		select {
		case <-ctx.Done():
			return status
		case <-time.After(p.Backoff):
		}
	}

	logger.Warn().
		Str("url", linkURL).
		Str("outcome", status).
		Int("attempts", attempts).
		Msg("All check attempts exhausted")
	return status
}
