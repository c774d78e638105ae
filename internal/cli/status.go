package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/poll"
	"github.com/rileyhilliard/nodeboard/internal/ui"
)

// StatusOutput represents the JSON output for the status command.
type StatusOutput struct {
	Nodes    []NodeStatus `json:"nodes"`
	Online   int          `json:"online"`
	Offline  int          `json:"offline"`
	Disabled int          `json:"disabled"`
}

// NodeStatus is one node's result for the JSON output.
type NodeStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Label    string `json:"label"`
	CPU      string `json:"cpu,omitempty"`
	RAM      string `json:"ram,omitempty"`
	GPUsBusy int    `json:"gpus_busy"`
	GPUs     int    `json:"gpus"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// statusCommand implements the status command logic.
func statusCommand(ctx context.Context, w io.Writer, asJSON bool) error {
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

	nodes := sess.Scheduler.Nodes()
	var spinner *ui.Spinner
	if !asJSON {
		spinner = ui.NewSpinner(os.Stderr, "Polling nodes", len(nodes))
		spinner.Start()
	}

	results := make(map[string]poll.Result, len(nodes))
	for r := range sess.Scheduler.Tick(ctx) {
		results[r.Node] = r
		if spinner != nil {
			spinner.Step()
		}
	}
	if err := ctx.Err(); err != nil {
		if spinner != nil {
			spinner.Fail()
		}
		return err
	}

	out := buildStatus(sess.Store.Panels(), results)
	if spinner != nil {
		if out.Offline > 0 {
			spinner.Fail()
		} else {
			spinner.Success()
		}
	}

	if asJSON {
		if err := WriteJSONSuccess(w, out); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, ui.RenderNodeTable(statusRows(out)))
		fmt.Fprintf(w, "%d online, %d offline, %d disabled\n", out.Online, out.Offline, out.Disabled)
	}

	if out.Offline > 0 {
		return errors.New(errors.ErrFetch,
			fmt.Sprintf("%d of %d active nodes are offline", out.Offline, out.Online+out.Offline),
			"Check that 'nodeboard agent' is running on each offline node and writing to the data directory")
	}
	return nil
}

// buildStatus merges the board's panels with one cycle's results, in
// display order.
func buildStatus(panels []panel.Panel, results map[string]poll.Result) StatusOutput {
	out := StatusOutput{Nodes: make([]NodeStatus, 0, len(panels))}
	for _, p := range panels {
		ns := NodeStatus{Name: p.Node, Label: p.Label}

		switch {
		case p.Status == config.StatusDisabled:
			ns.State = ui.StateDisabled
			ns.Reason = p.Body.Message
			out.Disabled++
		case p.Body.Kind == panel.BodyMetrics:
			ns.State = ui.StateOnline
			ns.CPU = p.Body.CPU.Text
			ns.RAM = p.Body.RAM.Text
			ns.GPUs = len(p.Body.GPUs)
			ns.GPUsBusy = busyGPUs(p.Body.GPUs)
			out.Online++
		case p.Body.Kind == panel.BodyOffline:
			ns.State = ui.StateOffline
			ns.Error = p.Body.Detail
			out.Offline++
		default:
			ns.State = ui.StatePending
		}

		if r, ok := results[p.Node]; ok && !r.Skipped {
			ns.Latency = formatLatency(r.Latency)
			if r.Err != nil && ns.Error == "" {
				ns.Error = errors.Summary(r.Err)
			}
		}
		out.Nodes = append(out.Nodes, ns)
	}
	return out
}

// busyGPUs counts GPUs with utilization or a running process.
func busyGPUs(gpus []panel.GPURow) int {
	busy := 0
	for _, g := range gpus {
		if g.Util.Percent > 0 || len(g.Processes) > 0 {
			busy++
		}
	}
	return busy
}

func statusRows(out StatusOutput) []ui.NodeTableRow {
	rows := make([]ui.NodeTableRow, 0, len(out.Nodes))
	for _, n := range out.Nodes {
		row := ui.NodeTableRow{
			Node:  n.Name,
			State: n.State,
			Label: n.Label,
			CPU:   n.CPU,
			RAM:   n.RAM,
		}
		switch n.State {
		case ui.StateOnline:
			row.GPUs = fmt.Sprintf("%d/%d", n.GPUsBusy, n.GPUs)
			row.Detail = n.Latency
		case ui.StateOffline:
			row.Detail = n.Error
		case ui.StateDisabled:
			row.Detail = n.Reason
		}
		rows = append(rows, row)
	}
	return rows
}

// formatLatency formats a duration as a human-readable latency string.
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
