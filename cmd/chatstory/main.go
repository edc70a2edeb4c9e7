package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/chat-story/internal/config"
	"github.com/jwebster45206/chat-story/internal/logger"
	"github.com/jwebster45206/chat-story/internal/storage"
	"github.com/jwebster45206/chat-story/pkg/save"
	"github.com/jwebster45206/chat-story/pkg/script"
	pkgstorage "github.com/jwebster45206/chat-story/pkg/storage"
)

// The terminal UI owns stdout, so play logs to a file unless LOG_FILE says otherwise.
const defaultPlayLogFile = "chatstory.log"

type globalFlags struct {
	scriptPath string
	slot       string
}

func main() {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "chatstory",
		Short:         "Play a branching story told through chat conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.scriptPath, "script", "", "Script file to play (overrides SCRIPT_PATH)")
	root.PersistentFlags().StringVar(&flags.slot, "slot", "", "Save slot name (overrides SAVE_SLOT)")

	root.AddCommand(
		playCmd(&flags),
		validateCmd(),
		resetCmd(&flags),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand that touches saves needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  pkgstorage.Storage
	saver  *save.Adapter

	logCloser io.Closer
}

func loadConfig(flags globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags.scriptPath != "" {
		cfg.ScriptPath = flags.scriptPath
	}
	if flags.slot != "" {
		cfg.SaveSlot = flags.slot
	}
	return cfg, nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, closer, err := logger.Setup(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    log,
		store:     store,
		saver:     save.NewAdapter(store, cfg.SaveSlot, log),
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close storage", "error", err)
	}
	_ = a.logCloser.Close()
}

func loadScript(path string, log *slog.Logger) (*script.Script, error) {
	g, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	for _, issue := range g.Lint() {
		log.Warn("Script issue", "path", path, "event_id", issue.EventID, "issue", issue.Message)
	}
	log.Info("Script loaded", "path", path, "title", g.Title, "events", g.Len(), "chats", len(g.Chats()))
	return g, nil
}
