package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"booksys/internal/auth"
	"booksys/internal/config"
	"booksys/internal/handler"
	"booksys/internal/hub"
	"booksys/internal/logging"
	"booksys/internal/metrics"
	"booksys/internal/service"
	"booksys/internal/watcher"
)

//go:embed web/*
var webFS embed.FS

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, logger, err := o.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, cfgPath, o, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, cfgPath string, o *rootOptions, logger *logrus.Logger) error {
	logger.Infof("log level %s", logger.GetLevel())

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.WithField("path", cfg.Database.Path).Info("database opened")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)

	eventBus := service.NewEventBus()
	sseHub := hub.New(logger)

	hasher := auth.NewHasher(auth.Params{
		Memory:      cfg.Password.MemoryKiB,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  auth.DefaultParams.SaltLength,
		KeyLength:   auth.DefaultParams.KeyLength,
	})
	accounts := service.NewAccountService(repo, repo, hasher, eventBus,
		service.WithSessionTTL(cfg.Session.TTL.Duration()),
		service.WithAccountLogger(logger),
	)
	books := service.NewBookService(repo, eventBus, service.BookServiceConfig{
		DefaultPageSize: cfg.Books.DefaultPageSize,
		MaxPageSize:     cfg.Books.MaxPageSize,
	}, logger)

	var limiter *handler.RateLimiter
	if cfg.RateLimit.PerMinute > 0 {
		proxies, err := cfg.Server.TrustedProxyPrefixes()
		if err != nil {
			return err
		}
		limiter = handler.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst,
			handler.WithTrustedProxies(proxies...))
	}

	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("embedded web content: %w", err)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Accounts:     accounts,
		Books:        books,
		Events:       sseHub,
		Log:          logger,
		Static:       webContent,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:  limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		CookieSecure: cfg.Server.CookieSecure,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration(),
		IdleTimeout:       cfg.Server.IdleTimeout.Duration(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sseHub.Run(gctx)
	})

	// Connect event bus to SSE hub
	events := make(chan service.Event, 100)
	eventBus.Subscribe(events)
	g.Go(func() error {
		defer eventBus.Unsubscribe(events)
		for {
			select {
			case ev := <-events:
				sseHub.Broadcast(ev.OwnerID, ev)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		return accounts.RunSessionJanitor(gctx, cfg.Session.PruneInterval.Duration())
	})

	if cfgPath != "" {
		w := watcher.New(cfgPath, func() {
			reloaded, _, err := config.LoadFromPath(cfgPath)
			if err != nil {
				logger.WithError(err).Warn("ignoring invalid config change")
				return
			}
			o.applyFlags(reloaded)
			if err := logging.SetLevel(logger, reloaded.Log.Level); err != nil {
				logger.WithError(err).Warn("ignoring invalid log level")
				return
			}
			logger.Infof("log level %s", logger.GetLevel())
		}, logger)
		g.Go(func() error {
			return w.Watch(gctx)
		})
	}

	g.Go(func() error {
		logger.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
