package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/chat-story/internal/events"
	"github.com/jwebster45206/chat-story/internal/storage"
	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/jwebster45206/chat-story/pkg/tutorial"
)

func playCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the story in the terminal (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *flags)
		},
	}
}

func runPlay(ctx context.Context, flags globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultPlayLogFile
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := loadScript(cfg.ScriptPath, a.logger)
	if err != nil {
		return err
	}

	var (
		engine  *progression.Engine
		program *tea.Program
	)

	// The engine calls presenters from the command goroutines started by the
	// UI, after the program is running, so Send never blocks forever.
	presenters := []progression.Presenter{
		progression.StreamFunc(func(in progression.Instruction) {
			program.Send(instructionMsg(in))
		}),
	}

	tut := tutorial.New(g, a.saver, func() (script.ChatID, bool) {
		return engine.NextLocation()
	}, func(h tutorial.Hint) {
		program.Send(hintMsg(h))
	}, a.logger)
	presenters = append(presenters, tut)

	if cfg.PublishEvents {
		b, closeBroadcaster, err := openBroadcaster(ctx, a, func() uuid.UUID { return engine.SessionID() })
		if err != nil {
			return err
		}
		defer closeBroadcaster()
		presenters = append(presenters, b)
	}

	policy := progression.Policy{
		InitialBatch: cfg.InitialBatch,
		TypingDelay:  cfg.TypingDelay,
		PlayerName:   cfg.PlayerName,
	}
	engine = progression.New(g, a.saver, progression.Fanout(presenters...), policy, a.logger)

	program = tea.NewProgram(NewStoryUI(engine, tut, policy),
		tea.WithAltScreen(),
		tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	// Best-effort final checkpoint; every step already saved.
	saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := engine.Save(saveCtx); err != nil {
		a.logger.Warn("Final save failed", "error", err)
	}
	return nil
}

// openBroadcaster publishes the render stream on Redis. It reuses the save
// store's connection when saves already live in Redis.
func openBroadcaster(ctx context.Context, a *app, session func() uuid.UUID) (*events.Broadcaster, func(), error) {
	if rs, ok := a.store.(*storage.RedisStorage); ok {
		return events.NewBroadcaster(rs.Client(), session, a.logger), func() {}, nil
	}

	rs, err := storage.NewRedisStorage(a.cfg.RedisURL, 0, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := rs.WaitForConnection(ctx, 5, time.Second); err != nil {
		_ = rs.Close()
		return nil, nil, fmt.Errorf("event publishing needs Redis: %w", err)
	}
	a.logger.Info("Publishing story events", "redis_url", a.cfg.RedisURL)
	return events.NewBroadcaster(rs.Client(), session, a.logger), func() { _ = rs.Close() }, nil
}
