package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-notes/pkg/simplenotes/api"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
	"github.com/tendant/simple-notes/pkg/simplenotes/presigned"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println("notes-server is configured through environment variables:")
		if err := config.WriteEnvUsage(os.Stdout); err != nil {
			slog.Error("Failed to describe configuration", "err", err)
			os.Exit(1)
		}
		return
	}

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := slog.Default()
	stack, err := serverConfig.Build(ctx, logger)
	if err != nil {
		slog.Error("Failed to build notes service", "err", err)
		os.Exit(1)
	}
	defer stack.Close()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	var authMiddleware func(next http.Handler) http.Handler
	if serverConfig.APIKeySHA256 != "" {
		apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": serverConfig.APIKeySHA256,
			},
		})
		if err != nil {
			slog.Error("Failed initialize API Key middleware", "err", err)
			return
		}
		authMiddleware = apiKeyMiddleware
	}

	if err := registerRoutes(server.R, serverConfig, stack, authMiddleware, logger); err != nil {
		slog.Error("Failed to register routes", "err", err)
		return
	}

	slog.Info("Notes server configured",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.StorageType,
		"owner_id", serverConfig.OwnerID)

	server.Run()
}

// registerRoutes mounts the notes API and, for stores that issue signed
// links back to this server, the download route. The download route is
// authorized by its signature and stays outside the API key check.
func registerRoutes(r chi.Router, cfg *config.ServerConfig, stack *config.Stack, auth func(http.Handler) http.Handler, logger *slog.Logger) error {
	maxBodySize, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}

	dispatcher := api.NewDispatcher(stack.Service,
		api.WithOwnerID(cfg.OwnerID),
		api.WithLogger(logger))
	notesHandler := api.NewNotesHandler(dispatcher, maxBodySize)

	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Mount("/notes", notesHandler.Routes())
	})

	if stack.Opener != nil && stack.Signer != nil {
		r.Handle("/files/*", presigned.NewHandler(stack.Opener, stack.Signer).WithLogger(logger))
	}
	return nil
}
