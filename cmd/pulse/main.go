package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/token-pulse/pkg/analyzer"
	"github.com/token-pulse/pkg/api"
	"github.com/token-pulse/pkg/audit"
	"github.com/token-pulse/pkg/birdeye"
	"github.com/token-pulse/pkg/cache"
	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/db"
	"github.com/token-pulse/pkg/helius"
	"github.com/token-pulse/pkg/report"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	log.Info().Msg("token-pulse starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	txCache := buildCache(cfg)
	fetcher, err := helius.NewClient(cfg, txCache)
	if err != nil {
		log.Fatal().Err(err).Msg("helius client init failed")
	}

	an := analyzer.New(fetcher, cfg.Thresholds)
	bd := birdeye.New(cfg)
	auditor := audit.New(bd)
	srv := api.New(an, auditor, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; log.Info().Msg("shutting down..."); cancel() }()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return runScheduler(ctx, cfg, store, an, bd, auditor) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exited with error")
	}
	log.Info().Msg("goodbye")
}

func buildCache(cfg *config.Config) helius.Cache {
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("using redis transaction cache")
			return c
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to disk cache")
	}
	c, err := cache.NewDisk(cfg.CacheDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cache dir init failed")
	}
	return c
}

// runScheduler analyzes every configured token on the cron schedule,
// persisting each snapshot. With no tokens configured the process serves
// API requests only.
func runScheduler(ctx context.Context, cfg *config.Config, store *db.Store, an *analyzer.Analyzer, bd *birdeye.Client, auditor *audit.Auditor) error {
	if len(cfg.Tokens) == 0 {
		log.Info().Msg("no TOKEN_ADDRESSES configured, running API-only")
		<-ctx.Done()
		return ctx.Err()
	}

	analyzeAll(ctx, cfg, store, an, bd, auditor)

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, func() { analyzeAll(ctx, cfg, store, an, bd, auditor) }); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func analyzeAll(ctx context.Context, cfg *config.Config, store *db.Store, an *analyzer.Analyzer, bd *birdeye.Client, auditor *audit.Auditor) {
	window := time.Duration(cfg.WindowMinutes) * time.Minute

	for _, token := range cfg.Tokens {
		if ctx.Err() != nil {
			return
		}

		result, err := an.Analyze(ctx, token, window)
		if errors.Is(err, analyzer.ErrNoData) {
			log.Info().Str("token", token).Msg("no transactions in window")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("token", token).Msg("analysis failed")
			continue
		}

		if _, err := store.InsertAnalysis(result); err != nil {
			log.Warn().Err(err).Str("token", token).Msg("failed to store snapshot")
		}

		var market *birdeye.PriceVolume
		var overview *birdeye.TokenOverview
		if bd.Enabled() {
			if pv, err := bd.PriceVolume(ctx, token, "24h"); err == nil {
				market = pv
			}
			if ov, err := bd.TokenOverview(ctx, token); err == nil {
				overview = ov
			}
		}
		report.Print(result, market, overview)

		if auditor.Enabled() {
			if ar, err := auditor.Audit(ctx, token); err != nil {
				log.Warn().Err(err).Str("token", token).Msg("token audit failed")
			} else {
				report.PrintAudit(ar)
			}
		}
	}
}
