package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the live store inspector.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	return r.withSession(ctx, func(s *Session) error {
		opts := ui.Options{Origin: s.Coordinator.OriginID()}
		if r.config.Sync.Transport != "none" || r.bus != nil {
			opts.Stats = s.Coordinator.Stats()
		}

		var sources []ui.Source
		for _, st := range s.Stores.All() {
			sources = append(sources, st)
		}

		model := ui.NewModel(ctx, sources, opts)
		defer model.Close()

		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})
}
