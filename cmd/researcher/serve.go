package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent"
	"github.com/mohammad-safakhou/researcher/internal/budget"
	"github.com/mohammad-safakhou/researcher/internal/engine"
	"github.com/mohammad-safakhou/researcher/internal/extract"
	"github.com/mohammad-safakhou/researcher/internal/knowledge"
	srv "github.com/mohammad-safakhou/researcher/internal/server"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/internal/telemetry"
	"github.com/mohammad-safakhou/researcher/internal/tokenizer"
	"github.com/mohammad-safakhou/researcher/internal/tools"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			log, err := newLogger(cfg.General)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveWith(ctx, cfg, log)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	return serve
}

func serveWith(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	tok, err := tokenizer.New(cfg.Knowledge.Tokenizer, cfg.Knowledge.Encoding)
	if err != nil {
		return fmt.Errorf("tokenizer: %w", err)
	}

	hosts := knowledge.HostPolicy{
		Allow:    cfg.Extractor.Website.Hosts.Allow,
		Disallow: cfg.Extractor.Website.Hosts.Disallow,
	}
	var fetcher extract.Fetcher
	switch cfg.Extractor.Website.Fetcher {
	case "chromedp":
		cf := extract.NewChromedpFetcher(cfg.Extractor.Website.Timeout, cfg.Extractor.Website.UserAgent).
			WithHostCheck(hosts.Permits)
		defer cf.Close()
		fetcher = cf
	default:
		fetcher = extract.NewHTTPFetcher(&http.Client{Timeout: cfg.Extractor.Website.Timeout}, cfg.Extractor.Website.UserAgent).
			WithHostCheck(hosts.Permits)
	}
	ex := extract.New(extract.Options{
		Tokenizer: tok,
		Fetcher:   fetcher,
		Tika:      extract.NewTikaBackend(cfg.Extractor.TikaURL, nil),
		MaxChars:  cfg.Extractor.Website.MaxChars,
		Logger:    log.Named("extract"),
	})

	st, rdb, err := openStore(ctx, cfg.Storage, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	var locker agent.Locker = agent.NewLocalLocker()
	if cfg.Locks.Driver == "redis" {
		if rdb == nil {
			rdb, err = store.ConnRedis(ctx, cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
			if err != nil {
				return err
			}
			defer rdb.Close()
		}
		locker = agent.NewRedisLocker(rdb, cfg.Locks.TTL, cfg.Locks.Wait)
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetrics()
	}

	engines := engine.Unavailable(engine.ErrNotConfigured)
	if cfg.LLM.APIKey != "" {
		engines = engine.NewOpenAI(engine.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxSteps:    cfg.LLM.MaxSteps,
			Timeout:     cfg.LLM.Timeout,
		}, log.Named("engine")).Factory()
	} else {
		log.Warn("llm.api_key is empty; queries will fail until it is configured")
	}
	toolset := tools.FromConfig(cfg.Sources)
	log.Info("research tools registered", zap.Strings("tools", toolset.Names()))

	acc := knowledge.NewAccumulator(ex, budget.NewTracker(cfg.Knowledge.MaxTokens), log.Named("knowledge")).
		WithHosts(hosts)
	svc := agent.NewService(agent.Options{
		Store:       st,
		Accumulator: acc,
		Composer:    knowledge.Composer{Base: knowledge.DefaultInstructions},
		Engines:     engines,
		Tools:       toolset,
		Locker:      locker,
		Metrics:     metrics,
		Logger:      log.Named("agent"),
	})

	e := srv.New(srv.Options{
		Service:        svc,
		Metrics:        metrics,
		Logger:         log.Named("http"),
		Server:         cfg.Server,
		MaxUploadBytes: cfg.Extractor.MaxUploadBytes,
	})
	return srv.Run(ctx, e, cfg.Server.Address, log)
}

// openStore returns the configured store, and the redis client when the store owns one.
func openStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (store.Store, *redis.Client, error) {
	switch cfg.Driver {
	case "postgres":
		dsn := cfg.Postgres.DSN()
		if err := srv.Migrate(cfg.MigrationsDir, dsn, "up", 0); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pg, err := store.OpenPostgres(ctx, dsn, cfg.Postgres.Timeout)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using postgres store")
		return pg, nil, nil
	case "redis":
		rdb, err := store.ConnRedis(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis store", zap.String("addr", cfg.Redis.Addr()))
		return store.NewRedis(rdb), rdb, nil
	default:
		log.Info("using in-memory store")
		return store.NewMemory(), nil, nil
	}
}
