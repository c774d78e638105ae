package cli

import (
	"context"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/poll"
	"github.com/rileyhilliard/nodeboard/internal/source"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// SessionOptions configures session setup.
type SessionOptions struct {
	Settings *config.Settings
	Logger   logger.Logger
	// Source overrides the source built from Settings.Source.
	Source source.Source
}

// Session holds everything a surface needs: the loaded dashboard, the board
// built from it, and the scheduler that keeps it current.
type Session struct {
	Settings  *config.Settings
	Source    source.Source
	Dashboard *config.Dashboard
	Store     *panel.Store
	Scheduler *poll.Scheduler
	Log       logger.Logger
}

// Close releases the source's connections.
func (s *Session) Close() {
	if s.Source != nil {
		s.Source.Close() //nolint:errcheck // nothing useful to do on close failure
	}
}

// OpenSession opens the source, loads the dashboard once and builds the
// board. The caller must Close the session.
func OpenSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	s := opts.Settings
	if s == nil {
		s = config.DefaultSettings()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[poll]")
	}

	src := opts.Source
	if src == nil {
		var err error
		src, err = source.New(s.Source, source.Options{DialTimeout: s.Timeout})
		if err != nil {
			return nil, err
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	d, err := config.Load(loadCtx, src, s.ConfigPath)
	if err != nil {
		src.Close() //nolint:errcheck
		return nil, err
	}
	log.Debug("loaded %d nodes (%d active) from %s", len(d.Nodes), len(d.Active()), src)

	store := panel.NewBoard(d)
	sched := poll.New(d, store, telemetry.NewFetcher(src, s.DataPath), poll.Options{
		Timeout:      s.Timeout,
		SkipInflight: s.SkipInflight,
		Logger:       log,
	})

	return &Session{
		Settings:  s,
		Source:    src,
		Dashboard: d,
		Store:     store,
		Scheduler: sched,
		Log:       log,
	}, nil
}
