package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/nodeboard/internal/agent"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/ui"
)

// agentCommand samples this machine as node and writes its snapshot,
// once or on the sample interval until ctx ends.
func agentCommand(ctx context.Context, w io.Writer, node string, once bool) error {
	s, err := Settings()
	if err != nil {
		return err
	}

	log := logger.NewEnvLogger("[agent]")
	// The usage window only builds up in a long-running agent.
	a, err := agent.New(node, agent.Options{Settings: s.Agent, Logger: log, NoUsage: once})
	if err != nil {
		return err
	}

	if once {
		r, err := a.WriteOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Wrote %s (%d GPUs)\n",
			ui.SuccessStyle().Render(ui.SymbolSuccess), a.Path(), len(r.GPUs))
		return nil
	}

	log.Info("writing %s every %s", a.Path(), a.Interval())
	return a.Run(ctx)
}
