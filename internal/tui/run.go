package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"cloudpose/internal/controller"
)

// Options configures the terminal UI.
type Options struct {
	ImageDir string
	Logger   *slog.Logger
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl *controller.Controller, opts Options, programOpts ...tea.ProgramOption) error {
	states, unsubscribe := subscribe(ctrl)
	defer unsubscribe()

	m := newModel(ctx, ctrl, states, opts.ImageDir, opts.Logger)
	programOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, programOpts...)
	if _, err := tea.NewProgram(m, programOpts...).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	ctrl.Wait()
	return nil
}

// subscribe bridges controller notifications into a channel that always holds
// the newest snapshot, so a slow renderer never blocks the controller.
func subscribe(ctrl *controller.Controller) (<-chan controller.State, func()) {
	ch := make(chan controller.State, 1)
	unsubscribe := ctrl.Subscribe(func(s controller.State) {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	})
	return ch, unsubscribe
}
