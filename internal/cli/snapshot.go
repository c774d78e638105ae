package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/rileyhilliard/nodeboard/internal/monitor"
	"github.com/rileyhilliard/nodeboard/internal/poll"
	"github.com/rileyhilliard/nodeboard/internal/web"
)

// snapshotCommand polls every active node once and prints the board.
func snapshotCommand(ctx context.Context, w io.Writer, asJSON bool) error {
	machineMode = asJSON

	s, err := Settings()
	if err != nil {
		return err
	}
	sess, err := OpenSession(ctx, SessionOptions{Settings: s})
	if err != nil {
		return err
	}
	defer sess.Close()

	poll.Drain(sess.Scheduler.Tick(ctx))
	if err := ctx.Err(); err != nil {
		return err
	}

	if asJSON {
		return WriteJSONSuccess(w, web.NewBoardResponse(sess.Store))
	}

	_, err = fmt.Fprint(w, monitor.Render(sess.Store, terminalWidth(w)))
	return err
}

// terminalWidth returns the width of w when it is a terminal, or 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
