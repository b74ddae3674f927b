package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/app"
	"github.com/ternarybob/siteaudit/internal/common"
)

var (
	configPath   = flag.String("config", "", "Configuration file path (TOML)")
	workers      = flag.Int("workers", 0, "Internal crawl worker count (overrides config)")
	forceNew     = flag.Bool("force-new", false, "Start a fresh audit even if one is in progress")
	keepAudits   = flag.Int("keep", 0, "Audit runs to retain (overrides config)")
	schedule     = flag.String("schedule", "", "Cron schedule for periodic audits (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <domain> [max_internal_links]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Audits a website: crawls every internal page, checks external link health,\n")
	fmt.Fprintf(os.Stderr, "and tracks mailto/tel links. Interrupted audits resume on the next run.\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Siteaudit version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Missing required input is the only condition that terminates the
	// process with an error.
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
		os.Exit(1)
	}

	config.Domain = common.CleanDomain(args[0])
	config.StartURL = common.SeedURL(args[0])
	if config.Domain == "" {
		usage()
		os.Exit(1)
	}
	if len(args) > 1 {
		config.Crawler.MaxPages = common.ParseMaxPages(args[1], config.Crawler.MaxPages)
	}

	// CLI overrides (highest priority).
	if *workers > 0 {
		config.Crawler.Concurrency = *workers
	}
	if *keepAudits > 0 {
		config.Audits.Keep = *keepAudits
	}
	if *schedule != "" {
		config.Schedule = *schedule
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("domain", config.Domain).
		Str("start_url", config.StartURL).
		Int("max_pages", config.Crawler.MaxPages).
		Int("workers", config.Crawler.Concurrency).
		Msg("Configuration resolved")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditor := app.New(config, *forceNew, logger)

	if config.Schedule != "" {
		runScheduled(ctx, auditor, config.Schedule, logger)
		return
	}

	if err := auditor.RunAudit(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("Interrupted; re-run to resume the audit")
			return
		}
		logger.Error().Err(err).Msg("Audit failed")
	}
}

// runScheduled executes the audit on a cron schedule until interrupted.
// Overlapping runs are prevented: a tick is skipped while an audit is still
// running.
func runScheduled(ctx context.Context, auditor *app.App, spec string, logger arbor.ILogger) {
	running := make(chan struct{}, 1)

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		select {
		case running <- struct{}{}:
		default:
			logger.Warn().Msg("Previous audit still running, skipping this tick")
			return
		}
		defer func() { <-running }()

		if err := auditor.RunAudit(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Scheduled audit failed")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", spec).Msg("Invalid cron schedule")
		os.Exit(1)
	}

	logger.Info().Str("schedule", spec).Msg("Running audits on schedule")
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info().Msg("Scheduler stopped")
}
