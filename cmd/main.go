package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"github.com/Vasu1712/chatcore/internal/api/conversations"
	"github.com/Vasu1712/chatcore/internal/api/users"
	"github.com/Vasu1712/chatcore/internal/auth"
	"github.com/Vasu1712/chatcore/internal/chat"
	"github.com/Vasu1712/chatcore/internal/config"
	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/feed/valkeyrelay"
	"github.com/Vasu1712/chatcore/internal/logger"
	"github.com/Vasu1712/chatcore/internal/middleware"
	"github.com/Vasu1712/chatcore/internal/reconcile"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/storage/memory"
	"github.com/Vasu1712/chatcore/internal/storage/postgres"
	"github.com/Vasu1712/chatcore/internal/telemetry"
	"github.com/Vasu1712/chatcore/internal/ws"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file (or CHAT_CONFIG)")
	addr := pflag.String("addr", "", "listen address, overrides the config")
	pflag.Parse()

	cfg, err := config.Load(config.ResolveConfigPath(*configPath, pflag.CommandLine.Changed("config")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := logger.Init(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	broker := feed.NewBroker(cfg.FeedBuffer, log)
	var chatFeed chat.Feed = broker
	if cfg.ValkeyAddr != "" {
		client, err := valkeyrelay.Dial(cfg.ValkeyAddr)
		if err != nil {
			return err
		}
		relay := valkeyrelay.New(client, broker, log)
		defer relay.Close()
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("feed relay stopped", "err", err)
			}
		}()
		chatFeed = relay
	}

	svc := chat.NewService(store, chatFeed, chat.Options{
		LikeMaxRetries: cfg.LikeMaxRetries,
		Logger:         log,
	})
	reconcile.New(svc, cfg.ReconcileCron, log).Start(ctx)

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	limiter := middleware.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer limiter.Shutdown()

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(middleware.Authenticate(verifier, limiter), middleware.RateLimit(limiter))
	streamer := ws.NewStreamer(cfg.AllowedOrigin)
	users.RegisterUserRoutes(api, &users.UserHandler{Service: svc, Streamer: streamer})
	conversations.RegisterConversationRoutes(api, &conversations.ConversationHandler{Service: svc, Streamer: streamer})

	// CORS sits outside the router so preflights reach it before method matching.
	handler := middleware.RequestLogger(log)(middleware.CORS(cfg.AllowedOrigin)(router))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", cfg.Addr, "backend", cfg.Backend, "auth", cfg.Auth.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, log)
	default:
		log.Warn("using in-memory backend, data is lost on restart")
		return memory.NewStore(), nil
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Provider {
	case config.ProviderFirebase:
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseProject)
	default:
		return auth.NewJWTVerifier(cfg.JWTSecret)
	}
}
