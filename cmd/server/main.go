package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/whatsapp-bridge-go/internal/config"
	"github.com/openclaw/whatsapp-bridge-go/internal/genai"
	"github.com/openclaw/whatsapp-bridge-go/internal/handler"
	"github.com/openclaw/whatsapp-bridge-go/internal/hub"
	"github.com/openclaw/whatsapp-bridge-go/internal/media"
	"github.com/openclaw/whatsapp-bridge-go/internal/middleware"
	"github.com/openclaw/whatsapp-bridge-go/internal/model"
	"github.com/openclaw/whatsapp-bridge-go/internal/redis"
	"github.com/openclaw/whatsapp-bridge-go/internal/service"
	"github.com/openclaw/whatsapp-bridge-go/internal/store"
	"github.com/openclaw/whatsapp-bridge-go/internal/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	credStore := transport.NewRedisCredentialStore(redisClient, cfg.TransportDriver)
	dialer := newDialer(cfg, credStore)

	convStore := store.NewConversationStore()
	broker := hub.NewHub()
	defer broker.Close()

	materializer := media.NewMaterializer(cfg.MediaTimeout())
	genClient := genai.NewClient(cfg.OllamaHost, cfg.OllamaModel, cfg.GenerateTimeout())

	responder := service.NewResponder(genClient, cfg.DebounceWindow(), cfg.GenerateTimeout(), model.BotMode(cfg.BotMode))
	defer responder.Close()

	supervisor := service.NewSupervisor(dialer, credStore, convStore, materializer, broker, responder, cfg.ReconnectInterval())
	responder.SetSender(supervisor)
	defer supervisor.Close()

	gateway := service.NewGateway(broker, convStore, responder, supervisor, genClient, cfg.GenerateTimeout())

	wsHandler := handler.NewWSHandler(broker, gateway)
	apiHandler := handler.NewAPIHandler(supervisor, responder, convStore, broker)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Get("/status", apiHandler.Status)
		r.Post("/send", apiHandler.Send)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisor.Run(ctx)

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newDialer(cfg *config.Config, creds transport.CredentialStore) transport.Dialer {
	switch cfg.TransportDriver {
	case "loopback":
		return &transport.LoopbackDialer{
			Credentials:  creds,
			PairingDelay: 3 * time.Second,
		}
	default:
		log.Fatal().Str("driver", cfg.TransportDriver).Msg("unknown transport driver (available: loopback)")
		return nil
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
