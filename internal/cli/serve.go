package cli

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/web"
)

// serveCommand polls on the dashboard interval and serves the board until
// ctx is cancelled.
func serveCommand(ctx context.Context) error {
	s, err := Settings()
	if err != nil {
		return err
	}

	sess, err := OpenSession(ctx, SessionOptions{Settings: s})
	if err != nil {
		return err
	}
	defer sess.Close()

	g, gctx := errgroup.WithContext(ctx)

	srv, err := web.New(gctx, sess.Store, sess.Scheduler, web.Options{
		RefreshLimit: s.RefreshLimit,
		Logger:       logger.NewEnvLogger("[web]"),
	})
	if err != nil {
		return err
	}

	g.Go(func() error {
		return sess.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		return srv.Serve(gctx, s.Listen)
	})
	return g.Wait()
}
