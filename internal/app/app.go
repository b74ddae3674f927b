// Package app wires the audit components together and executes one full
// audit run: lifecycle resolution, state restore, the internal crawl phase,
// the external verification phase, and final bookkeeping.
package app

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/audit"
	"github.com/ternarybob/siteaudit/internal/common"
	"github.com/ternarybob/siteaudit/internal/crawler"
	"github.com/ternarybob/siteaudit/internal/models"
	"github.com/ternarybob/siteaudit/internal/store"
)

// App executes audits for one configured domain.
type App struct {
	config   *common.Config
	logger   arbor.ILogger
	forceNew bool
}

// New creates an App. When forceNew is set, an in-progress run is never
// resumed; a fresh audit id is allocated instead.
func New(config *common.Config, forceNew bool, logger arbor.ILogger) *App {
	return &App{config: config, logger: logger, forceNew: forceNew}
}

// RunAudit performs one complete audit of the configured domain. An
// interrupted run is left in-progress so the next invocation resumes it;
// any other failure marks the run failed.
func (a *App) RunAudit(ctx context.Context) error {
	manager := audit.NewManager(a.config.DataDir, a.config.Domain, a.logger)

	paths, resumed, err := manager.CreateOrResume(a.forceNew)
	if err != nil {
		return err
	}

	a.logger.Info().
		Str("domain", a.config.Domain).
		Str("audit_id", paths.ID).
		Bool("resumed", resumed).
		Msg("Audit run starting")

	stateStore := store.NewStateStore(paths.StatePath, a.logger)
	state, err := stateStore.Load()
	if err != nil {
		return err
	}
	if state == nil {
		state = models.NewCrawlState()
		state.Frontier = []string{a.config.StartURL}
		a.logger.Info().Str("seed", a.config.StartURL).Msg("No prior state, seeding frontier")
	} else {
		a.logger.Info().
			Int("visited", state.Visited.Len()).
			Int("frontier", len(state.Frontier)).
			Msg("Prior state loaded")
	}

	cache, err := store.NewPageCache(paths.PagesDir, a.config.Cache.Capacity, a.logger)
	if err != nil {
		return a.fail(manager, paths.ID, err)
	}

	fetcher := crawler.NewFetcher(a.config.Crawler, a.logger)
	if a.config.Crawler.FollowRobotsTxt {
		fetcher.LoadRobots(ctx, a.config.StartURL)
	}
	classifier := crawler.NewClassifier(a.config.Domain)

	scheduler := crawler.NewScheduler(a.config.Crawler, fetcher, classifier, state, stateStore, cache, a.logger)
	if err := scheduler.Run(ctx); err != nil {
		return a.interrupted(paths.ID, err)
	}

	verifier := crawler.NewVerifier(a.config.Verifier, fetcher, state, stateStore, a.logger)
	linksChecked, err := verifier.Run(ctx)
	if err != nil {
		return a.interrupted(paths.ID, err)
	}

	if err := manager.Complete(paths.ID, scheduler.PagesProcessed(), linksChecked); err != nil {
		a.logger.Warn().Err(err).Str("audit_id", paths.ID).Msg("Failed to mark audit completed")
	}
	if err := manager.Cleanup(a.config.Audits.Keep); err != nil {
		a.logger.Warn().Err(err).Msg("Audit cleanup failed")
	}

	a.logger.Info().
		Str("audit_id", paths.ID).
		Int("pages", scheduler.PagesProcessed()).
		Int("links_checked", linksChecked).
		Msg("Audit run complete")
	return nil
}

// interrupted handles a context cancellation: state is already checkpointed
// by the phase that observed it, and the record stays in-progress so the
// next invocation resumes.
func (a *App) interrupted(id string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		a.logger.Info().Str("audit_id", id).Msg("Audit interrupted, state checkpointed for resume")
		return err
	}
	return err
}

func (a *App) fail(manager *audit.Manager, id string, cause error) error {
	if err := manager.Fail(id, cause); err != nil {
		a.logger.Warn().Err(err).Str("audit_id", id).Msg("Failed to mark audit failed")
	}
	return cause
}
