package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"promptsmith/internal/generation"
	"promptsmith/internal/http/handlers"
	httpapi "promptsmith/internal/http/httpapi"
	"promptsmith/internal/infra"
	"promptsmith/internal/infra/credentials"
	"promptsmith/internal/providers/prompt"
	"promptsmith/internal/upload"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	store, closeStore, err := credentials.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CredentialBackend).Msg("failed to open credential store")
	}
	defer closeStore()

	client, err := prompt.New(cfg, &http.Client{Timeout: cfg.GenerationTimeout}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation client")
	}
	machine, err := generation.NewMachine(generation.Options{
		Client:      client,
		Credentials: store,
		MaxCount:    cfg.MaxPromptCount,
		Timeout:     cfg.GenerationTimeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generator")
	}

	images := upload.NewHolder()
	defer images.Close()

	app := handlers.NewApp(cfg, logger, store, images, machine)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("provider", client.Name()).
			Bool("schema", client.SupportsSchema()).
			Msg("API listening")
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
		return
	}

	// In-flight generations are allowed to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GenerationTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
