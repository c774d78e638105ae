package cli

import (
	"context"
	stderrors "errors"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/monitor"
)

// debugLogFile receives log output while the terminal UI owns the screen.
const debugLogFile = "nodeboard-debug.log"

// watchCommand runs the terminal board. allowRefresh enables the 'r' key.
func watchCommand(ctx context.Context, allowRefresh bool) error {
	s, err := Settings()
	if err != nil {
		return err
	}

	// Log lines would tear the alt screen: send them to a file when
	// debugging, otherwise drop them.
	if logger.DebugEnabled() {
		f, err := tea.LogToFile(debugLogFile, "nodeboard")
		if err != nil {
			return err
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	sess, err := OpenSession(ctx, SessionOptions{Settings: s})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var refresher monitor.Refresher
	if allowRefresh {
		refresher = sess.Scheduler
	}
	model := monitor.NewModel(ctx, sess.Store, refresher)
	defer model.Close()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sess.Scheduler.Run(ctx) //nolint:errcheck // Run only returns on cancel
	}()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()

	cancel()
	<-schedDone
	if stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
