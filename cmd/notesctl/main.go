package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-notes/pkg/simplenotes/api"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand(dispatcherFromEnv)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// DispatcherFactory builds the dispatcher a command runs against. The
// returned func releases whatever the dispatcher holds.
type DispatcherFactory func(cmd *cobra.Command) (*api.Dispatcher, func(), error)

func NewRootCommand(factory DispatcherFactory) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "notesctl",
		Short: "Notes CLI - manage notes and their attachments",
		Long: `Notes Command Line Interface

Drives the notes service directly using the same environment configuration
as notes-server. Configuration can be loaded from a .env file in the current
directory; environment variables override .env values.

Uses in-memory storage by default, which only lives for one command.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("owner", "", "owner to act as (default: NOTES_OWNER_ID)")

	rootCmd.AddCommand(NewListCommand(factory))
	rootCmd.AddCommand(NewGetCommand(factory))
	rootCmd.AddCommand(NewCreateCommand(factory))
	rootCmd.AddCommand(NewUpdateCommand(factory))
	rootCmd.AddCommand(NewDeleteCommand(factory))

	return rootCmd
}

// dispatcherFromEnv builds the service stack from environment configuration
func dispatcherFromEnv(cmd *cobra.Command) (*api.Dispatcher, func(), error) {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
		logger.Debug("Configuration loaded",
			"database", cfg.DatabaseType,
			"storage", cfg.StorageType,
			"owner_id", cfg.OwnerID)
	}

	stack, err := cfg.Build(context.Background(), logger)
	if err != nil {
		return nil, nil, err
	}

	ownerID := cfg.OwnerID
	if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
		ownerID = owner
	}
	return api.NewDispatcher(stack.Service, api.WithOwnerID(ownerID), api.WithLogger(logger)), stack.Close, nil
}
