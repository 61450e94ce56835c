package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nasirmalek/FamilyCircle/internal/api"
	"github.com/nasirmalek/FamilyCircle/internal/config"
	"github.com/nasirmalek/FamilyCircle/internal/handlers"
	"github.com/nasirmalek/FamilyCircle/internal/metrics"
	"github.com/nasirmalek/FamilyCircle/internal/repository/sqldb"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/telegram"
	"github.com/nasirmalek/FamilyCircle/internal/tracing"
	"github.com/nasirmalek/FamilyCircle/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	l.Info("Starting FamilyCircle...")

	if err := run(cfg, l); err != nil {
		l.Errorf("FamilyCircle stopped with error: %v", err)
		os.Exit(1)
	}

	l.Info("FamilyCircle stopped")
}

// run wires and serves until a signal arrives or a server fails. Deferred
// cleanup runs before it returns.
func run(cfg *config.Config, l *logrus.Logger) error {
	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, "familycircle", l)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(c); err != nil {
			l.Errorf("Failed to flush traces: %v", err)
		}
	}()

	// Database
	db, err := config.NewDatabase(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, l)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories and service layer
	b := db.Backend()
	svc := service.New(l, m,
		sqldb.NewChatRepository(b),
		sqldb.NewMessageRepository(b),
		sqldb.NewProfileRepository(b),
		sqldb.NewFamilyRepository(b),
	)

	// Telegram bot
	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}

		bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("chats", handlers.NewChatsHandler(svc, l))
		bot.RegisterCommand("read", handlers.NewReadHandler(svc, l))
		bot.RegisterCommand("say", handlers.NewSayHandler(svc, l))
		bot.RegisterCommand("direct", handlers.NewDirectHandler(svc, l))
		bot.RegisterCommand("group", handlers.NewGroupHandler(svc, l))
	} else {
		l.Info("TELEGRAM_TOKEN not set, Telegram bot disabled")
	}

	apiServer := api.NewServer(svc, []byte(cfg.JWTSecret), l, api.WithMetrics(m))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	for name, srv := range map[string]*http.Server{"HTTP": httpServer, "Metrics": metricsServer} {
		name, srv := name, srv
		g.Go(func() error {
			l.Infof("%s server listening on %s", name, srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			l.Infof("Shutting down %s server...", name)
			return srv.Shutdown(c)
		})
	}

	if bot != nil {
		g.Go(func() error {
			return bot.Start(ctx)
		})
	}

	l.Info("FamilyCircle started successfully")
	return g.Wait()
}
