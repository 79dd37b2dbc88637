package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/y0ug/ipamon/internal/dispatch"
	"github.com/y0ug/ipamon/internal/ipamon"
	"github.com/y0ug/ipamon/internal/listing"
	"github.com/y0ug/ipamon/internal/notifications"
	"github.com/y0ug/ipamon/internal/scheduler"
	"github.com/y0ug/ipamon/internal/state"
	"github.com/y0ug/ipamon/internal/webserver"
)

func main() {
	ctx := context.Background()

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	configPathFlag := flag.String("config", "", "Path to the config file")
	mockFingerprintFlag := flag.String("mock-fingerprint", "", "Override the stable channel fingerprint (testing only)")
	flag.Parse()

	// Load .env file if present.
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found. Proceeding with environment variables.")
	}

	cfg, err := ipamon.LoadConfig(*configPathFlag)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	store, err := state.Open(cfg.State)
	if err != nil {
		logger.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close(ctx)

	if err := store.Initialize(ctx); err != nil {
		logger.Fatalf("Failed to initialize state store: %v", err)
	}
	logger.Info("State store initialized successfully")

	var limiter *dispatch.RateLimiter
	if cfg.RateLimit.Rate > 0 {
		limiter = &dispatch.RateLimiter{
			Limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst),
			Rate:    rate.Limit(cfg.RateLimit.Rate),
			Burst:   cfg.RateLimit.Burst,
		}
		logger.Infof("Dispatch rate limiter: %v req/s, burst %d", cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	dispatchers := make([]dispatch.Dispatcher, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		client := dispatch.NewGitHubClient(target.GitHubRepo, target.GitHubToken)
		if limiter != nil {
			client.SetRateLimiter(limiter)
		}
		dispatchers = append(dispatchers, client)
		logger.WithField("target", target.GitHubRepo).Info("Dispatch target configured")
	}

	notifier, err := notifications.NewNotifier(cfg.NotifyURLs)
	if err != nil {
		logger.Fatalf("Failed to initialize notifier: %v", err)
	}
	if notifier != nil {
		logger.Info("Operator notifier initialized")
	}

	checker := ipamon.NewChecker(cfg, store, dispatchers, notifier)
	if *mockFingerprintFlag != "" {
		logger.Warn("Running with a mock fingerprint for the stable channel")
		checker.SetMockFingerprint(*mockFingerprintFlag)
	}

	sched, err := scheduler.New(cfg.RefreshSchedule, checker.RunTick)
	if err != nil {
		logger.Fatalf("Failed to build scheduler: %v", err)
	}

	ctxCancel, cancel := context.WithCancel(ctx)
	defer cancel()

	var opsServer *http.Server
	if cfg.Webserver.Listen != "" {
		ws := webserver.NewWebServer(store, listing.Channels, cfg.Webserver, logger)
		opsServer, err = webserver.StartWebServer(ctxCancel, ws)
		if err != nil {
			logger.Fatalf("Failed to start ops server: %v", err)
		}
	}

	go func() {
		logger.Infof("Scheduler started with cron expression: %s", cfg.RefreshSchedule)
		sched.Start(ctxCancel)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	logger.Infof("Received signal: %s. Initiating shutdown...", sig)
	cancel()

	if opsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
		defer shutdownCancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to gracefully shutdown the ops server: %v", err)
		}
	}

	logger.Info("Shutdown complete. Exiting.")
}
