package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ekaai-backend/internal/authctx"
	"ekaai-backend/internal/client"
	"ekaai-backend/internal/clientstate"
	"ekaai-backend/internal/config"
	"ekaai-backend/internal/database"
	"ekaai-backend/internal/handlers"
	"ekaai-backend/internal/identity"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/profile"
	"ekaai-backend/internal/repository"
	"ekaai-backend/internal/router"
	"ekaai-backend/internal/services"
	"ekaai-backend/internal/websocket"
	"ekaai-backend/internal/worker"
)

func main() {
	root := &cobra.Command{
		Use:           "ekaai",
		Short:         "EkaAI web backend (auth bootstrap, profile sync, tutoring chat)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on boot")
	return cmd
}

func migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending profile store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
			defer logger.Sync()

			ctx := context.Background()
			pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if status {
				migrations, err := database.ListMigrations(ctx, pool, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				for _, m := range migrations {
					mark := " "
					if m.Applied {
						mark = "✓"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %03d %s\n", mark, m.Version, m.Name)
				}
				return nil
			}

			n, err := database.RunMigrations(ctx, pool, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %d migration(s) applied\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list migrations without applying them")
	return cmd
}

func serve(ctx context.Context, skipMigrations bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	defer logger.Sync()
	log := logger.Named("main")
	log.Info("🚀 Starting EkaAI Backend...")
	log.Info("✓ Environment variables loaded", zap.String("env", cfg.Env), zap.String("auth_mode", cfg.AuthMode))

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	defer pool.Close()
	log.Info("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	if !skipMigrations {
		n, err := database.RunMigrations(ctx, pool, cfg.MigrationsDir)
		if err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		log.Info("✓ Database migrations applied", zap.Int("new", n))
	}

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisClients.Close()
	log.Info("✓ Redis connected")

	sealer, err := clientstate.NewSealer(cfg.StateSecret)
	if err != nil {
		return fmt.Errorf("visitor state sealer: %w", err)
	}
	states := clientstate.NewRedisProvider(redisClients.State, sealer, cfg.SessionIdleTTL)

	// ──── Step 5: Metrics ────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// ──── Initialize Clients ────
	api := client.New(cfg.APIBaseURL, client.WithRecorder(collector))

	var identities identity.Factory
	switch cfg.AuthMode {
	case config.AuthModeToken:
		identities = identity.NewTokenAuthFactory(identity.TokenAuthConfig{
			GoogleClientID:     cfg.GoogleClientID,
			GoogleClientSecret: cfg.GoogleClientSecret,
			CallbackURL:        cfg.PublicURL + "/auth/callback",
		}, api, states)
	default:
		identities = identity.NewSupabaseFactory(identity.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			AnonKey:    cfg.SupabaseAnonKey,
			ServiceKey: cfg.SupabaseServiceKey,
			Recorder:   collector,
		}, states)
	}
	log.Info("✓ Identity provider configured", zap.String("mode", cfg.AuthMode))

	profiles := profile.NewFetcher(repository.NewProfileRepo(pool), collector)

	// ──── Step 6: Start Job Worker Pool ────
	notify := func(ctx context.Context, accessToken string, n models.OnboardingNotification) error {
		return api.WithBearer(accessToken).NotifyOnboarding(ctx, n)
	}
	workerPool := worker.NewPool(worker.NewRedisQueue(redisClients.Queue, worker.PersonalizationQueue), sealer, notify, cfg.WorkerCount)
	workerPool.Start()
	log.Info("✓ Worker pool started", zap.Int("goroutines", cfg.WorkerCount))

	// ──── Visitor Sessions ────
	visitorRegistry := authctx.NewRegistry(func(visitorID string) *authctx.Context {
		return authctx.New(identities(visitorID), profiles,
			authctx.WithPersonalizer(workerPool),
			authctx.WithRecorder(collector),
			authctx.WithConfig(authctx.Config{SessionTimeout: cfg.SessionCheckTimeout}),
			authctx.WithLogger(logger.Named("authctx").With(zap.String("visitor", visitorID))),
		)
	}, cfg.SessionIdleTTL, collector)

	visitors := middleware.NewVisitors(visitorRegistry, cfg.IsProduction())
	gate := middleware.NewGate(cfg.SessionCheckTimeout, cfg.FrontendURL)
	waitlistLimiter := middleware.NewRateLimiter(cfg.WaitlistRatePerMin, time.Minute)

	// ──── Initialize Services ────
	sanitizer := services.NewSanitizer()
	tutor := services.NewTutor(cfg.SessionIdleTTL, sanitizer)
	waitlist := services.NewWaitlistService(api, collector)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(tutor, cfg.FrontendURL, cfg.PublicURL, cfg.SessionCheckTimeout)
	userHandler := handlers.NewUserHandler()
	waitlistHandler := handlers.NewWaitlistHandler(waitlist)
	dashboardHandler := handlers.NewDashboardHandler(api)
	studySessionHandler := handlers.NewStudySessionHandler(api)
	flashcardHandler := handlers.NewFlashcardHandler(api)
	contentHandler := handlers.NewContentHandler(api)
	chatHandler := handlers.NewChatHandler(api, tutor, sanitizer)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(cfg.FrontendURL)
	log.Info("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		visitors,
		gate,
		waitlistLimiter,
		authHandler,
		userHandler,
		waitlistHandler,
		dashboardHandler,
		studySessionHandler,
		flashcardHandler,
		contentHandler,
		chatHandler,
		wsHub,
		metrics.Handler(registry),
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		wsHub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}

		workerPool.Stop()
		visitorRegistry.Close()
		waitlistLimiter.Stop()
	}()

	log.Info(fmt.Sprintf("✓ EkaAI Backend ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
	log.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/auth/ws", cfg.Port))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-done
	return nil
}
