package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"weHabitAPI/handlers"
	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/config"
	"weHabitAPI/internal/logger"
	"weHabitAPI/internal/metrics"
	"weHabitAPI/internal/notification"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/store/fsstore"
	"weHabitAPI/internal/store/memstore"
	"weHabitAPI/internal/store/pgstore"
	"weHabitAPI/middleware"
	"weHabitAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Environment, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.ClerkSecretKey != "" {
		clerk.SetKey(cfg.Auth.ClerkSecretKey)
		log.Info("Clerk initialized successfully")
	} else {
		log.Warn("CLERK_SECRET_KEY is not set; authenticated routes will reject every request")
	}

	loc, err := clock.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		log.Fatal("invalid timezone", zap.String("timezone", cfg.Server.Timezone), zap.Error(err))
	}
	clk := clock.New(loc, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, fbApp, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		log.Info("closing store")
		if err := st.Close(); err != nil {
			log.Error("store close error", zap.Error(err))
		}
	}()

	// Services
	tx := services.NewTxRunner(st, cfg.Store.TxMaxRetries, log)
	effects := services.NewEffectDispatcher(cfg.Effects.Workers, cfg.Effects.QueueSize, cfg.Effects.MaxAttempts, log)

	shieldService := services.NewShieldService(tx, clk, cfg.Habits.MaxStreakShields, log)
	userService := services.NewUserService(tx, clk, shieldService, cfg.Habits.InitialStreakShields, log)
	feedService := services.NewFeedService(st, clk, log)
	habitService := services.NewHabitService(tx, clk, shieldService, effects, log)
	challengeService := services.NewChallengeService(tx, clk, effects, log)

	effects.SetActivityEmitter(feedService)
	effects.SetExperienceAwarder(userService)
	effects.SetChallengePropagator(challengeService)
	effects.SetPushNotifier(feedService)

	if fbApp == nil {
		fbApp, err = notification.NewFirebaseApp(ctx, cfg.Firebase, log)
	}
	if err == nil {
		var fcmService *notification.FCMService
		fcmService, err = notification.NewFCMService(ctx, fbApp, log)
		if err == nil {
			feedService.SetPushProvider(fcmService)
			log.Info("FCM push provider initialized successfully")
		}
	}
	if err != nil {
		log.Warn("could not initialize FCM; push notifications disabled", zap.Error(err))
	}

	reg := prometheus.DefaultRegisterer
	metrics.Register(reg)
	middleware.InitPrometheus(reg)

	// Handlers
	userHandler := handlers.NewUserHandler(userService, shieldService, feedService, log)
	habitHandler := handlers.NewHabitHandler(habitService, log)
	challengeHandler := handlers.NewChallengeHandler(challengeService, log)
	webhookHandler := handlers.NewWebhookHandler(userService, cfg.Auth.ClerkWebhookSecret, log)

	r := mux.NewRouter()
	standardRouter := r.PathPrefix("/").Subrouter()

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go rateLimiter.CleanupVisitors(ctx)

	standardRouter.Use(rateLimiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.Server.MetricsUser, cfg.Server.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.Server.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "wehabit-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(log))

	protected.HandleFunc("/user/profile", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/push-token", userHandler.RegisterPushToken).Methods("POST")
	protected.HandleFunc("/user/shields", userHandler.GetShields).Methods("GET")
	protected.HandleFunc("/user/feed", userHandler.GetFeed).Methods("GET")

	protected.HandleFunc("/habits", habitHandler.ListHabits).Methods("GET")
	protected.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	protected.HandleFunc("/habits/today", habitHandler.TodayCompleted).Methods("GET")
	protected.HandleFunc("/habits/bulk-delete", habitHandler.BulkDelete).Methods("POST")
	protected.HandleFunc("/habits/move-category", habitHandler.MoveToCategory).Methods("POST")
	protected.HandleFunc("/habits/{id}", habitHandler.UpdateHabit).Methods("PUT")
	protected.HandleFunc("/habits/{id}", habitHandler.DeleteHabit).Methods("DELETE")
	protected.HandleFunc("/habits/{id}/check-in", habitHandler.CheckIn).Methods("POST")
	protected.HandleFunc("/habits/{id}/check-in", habitHandler.UndoCheckIn).Methods("DELETE")
	protected.HandleFunc("/habits/{id}/reset", habitHandler.ResetNegative).Methods("POST")
	protected.HandleFunc("/habits/{id}/history", habitHandler.History).Methods("GET")
	protected.HandleFunc("/habits/{id}/calendar", habitHandler.Calendar).Methods("GET")

	protected.HandleFunc("/challenges", challengeHandler.MyChallenges).Methods("GET")
	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{id}", challengeHandler.DeleteChallenge).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/check-in", challengeHandler.CheckIn).Methods("POST")
	protected.HandleFunc("/challenges/{id}/check-in", challengeHandler.UndoCheckIn).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/give-up", challengeHandler.GiveUp).Methods("POST")
	protected.HandleFunc("/challenges/{id}/standings", challengeHandler.Standings).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.String("store", cfg.Store.Driver),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("error starting server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("got signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	cancel()
	effects.Stop()

	log.Info("server shutdown complete")
}

// openStore returns the configured store. The Firebase app is returned too
// when the Firestore driver created one, so FCM can share it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, *firebase.App, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case "memory":
		log.Warn("using the in-memory store; data is lost on restart")
		return memstore.New(), nil, nil
	case "postgres":
		s, err := pgstore.Connect(connectCtx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("successfully connected to postgres")
		return s, nil, nil
	default:
		app, err := notification.NewFirebaseApp(ctx, cfg.Firebase, log)
		if err != nil {
			return nil, nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("error getting firestore client: %w", err)
		}
		log.Info("successfully connected to firestore")
		return fsstore.New(client), app, nil
	}
}
