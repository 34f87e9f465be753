package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Clark-Hu/watchstats/internal/config"
	httpserver "github.com/Clark-Hu/watchstats/internal/http"
	"github.com/Clark-Hu/watchstats/internal/metadata"
	"github.com/Clark-Hu/watchstats/internal/repository"
	"github.com/Clark-Hu/watchstats/internal/scheduler"
	"github.com/Clark-Hu/watchstats/internal/stats"
	"github.com/Clark-Hu/watchstats/internal/store"
	"github.com/Clark-Hu/watchstats/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[watchstats] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	repo := repository.New(st)

	scorer, err := stats.NewScorer(cfg.StatsScoreMode, cfg.StatsPriorMean, cfg.StatsPriorVotes)
	if err != nil {
		log.Fatalf("init scorer: %v", err)
	}
	engine := stats.NewEngineFromRepository(repo, stats.Options{
		RankLimit:   cfg.StatsRankLimit,
		SampleLimit: cfg.StatsSampleLimit,
		Workers:     cfg.StatsWorkers,
		UserTimeout: time.Duration(cfg.StatsUserTimeoutSecs) * time.Second,
		Scorer:      scorer,
		Logger:      logger,
	})

	var refresher httpserver.Refresher
	if cfg.MetadataEnabled() {
		client, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, tmdb.Options{
			Timeout:    time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
			RatePerSec: cfg.TMDBRatePerSec,
			Logger:     logger,
		})
		if err != nil {
			log.Fatalf("init tmdb client: %v", err)
		}
		refresher = metadata.NewRefresher(repo.Users, repo.Entries, client, cfg.TMDBWorkers, logger)
	} else {
		logger.Printf("metadata: TMDB_API_KEY not set, refresh disabled")
	}

	if cfg.StatsRecomputeCron != "" {
		sched, err := scheduler.New(cfg.StatsRecomputeCron, engine, logger)
		if err != nil {
			log.Fatalf("init scheduler: %v", err)
		}
		sched.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			sched.Stop(stopCtx)
		}()
	}

	server := httpserver.New(cfg, st, repo, engine, refresher, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
