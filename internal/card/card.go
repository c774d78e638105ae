// Package card turns a telemetry snapshot into a panel body.
package card

import (
	"fmt"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// Target is where rendered bodies are written; *panel.Store implements it.
type Target interface {
	Set(node, label string, body panel.Body) bool
	SetBody(node string, body panel.Body) bool
}

// Renderer renders snapshots using the page-wide GPU name map and usage row limit.
type Renderer struct {
	nameMap map[string]string
	topN    int
}

// NewRenderer returns a Renderer for the given global settings.
func NewRenderer(g config.Global) *Renderer {
	return &Renderer{nameMap: g.GPUNameMap, topN: g.UsageTopN}
}

// Apply renders snap into node's panel and sets the status label to the
// snapshot timestamp. Only that node's panel changes.
func (r *Renderer) Apply(t Target, node string, snap *telemetry.Snapshot) bool {
	label := string(snap.Timestamp)
	if label == "" {
		label = "-"
	}
	return t.Set(node, label, r.Render(snap))
}

// Offline replaces node's body with the offline message. The status label
// keeps the last successful timestamp.
func (r *Renderer) Offline(t Target, node string, err error) bool {
	body := panel.OfflineBody()
	if err != nil {
		body.Detail = errors.Summary(err)
	}
	return t.SetBody(node, body)
}

// Render builds the metrics body for a snapshot: CPU and RAM bars, disks,
// the GPU table, and the usage summary when one was reported.
func (r *Renderer) Render(snap *telemetry.Snapshot) panel.Body {
	sys := snap.System
	body := panel.Body{
		Kind: panel.BodyMetrics,
		CPU:  percentBar("CPU", sys.CPUPercent),
		RAM:  percentBar("RAM", sys.RAMPercent),
	}

	for _, d := range telemetry.ResolveDiskList(sys) {
		body.Disks = append(body.Disks, diskBar(d))
	}

	body.GPUs = make([]panel.GPURow, 0, len(snap.GPUs))
	for _, gpu := range snap.GPUs {
		body.GPUs = append(body.GPUs, r.gpuRow(gpu))
	}

	r.renderUsage(&body, snap.Usage)
	return body
}

func (r *Renderer) gpuRow(gpu telemetry.GPUStats) panel.GPURow {
	row := panel.GPURow{
		ID:   string(gpu.ID),
		Name: telemetry.ResolveGPUDisplayName(string(gpu.Name), r.nameMap),
		VRAM: panel.NewBar("VRAM",
			fmt.Sprintf("%sMB / %s", telemetry.FormatNumber(gpu.VRAMUsedMB), percentText(gpu.VRAMPercent)),
			gpu.VRAMPercent.Float()),
		Util:      panel.NewBar("Util", percentText(gpu.UtilPercent), gpu.UtilPercent.Float()),
		Processes: make([]panel.ProcessTag, 0, len(gpu.Processes)),
	}
	if row.ID == "" {
		row.ID = "-"
	}
	if row.Name == "" {
		row.Name = "-"
	}

	for _, p := range gpu.Processes {
		user := string(p.User)
		if user == "" {
			user = "?"
		}
		row.Processes = append(row.Processes, panel.ProcessTag{
			Label:  fmt.Sprintf("%s(%s)", user, percentText(p.RAMPercent)),
			Detail: "PID: " + telemetry.FormatNumber(p.PID),
		})
	}
	return row
}

func (r *Renderer) renderUsage(body *panel.Body, usage *telemetry.UsageStats) {
	if !usage.HasUserList() {
		return
	}

	title := fmt.Sprintf("User usage (last %d days)", usage.Window())
	users := telemetry.TopUsers(usage, r.topN)
	if len(users) == 0 {
		body.UsageNotice = title + ": no data"
		return
	}

	table := &panel.UsageTable{Title: title, Rows: make([]panel.UsageRow, 0, len(users))}
	for _, u := range users {
		table.Rows = append(table.Rows, panel.UsageRow{
			User:        orDash(string(u.User)),
			ActiveHours: telemetry.FormatNumber(u.ActiveHours),
			AvgVRAM:     telemetry.FormatNumber(u.AvgVRAMPercent),
			MaxVRAM:     telemetry.FormatNumber(u.MaxVRAMPercent),
		})
	}
	body.Usage = table
}

// percentBar builds a "<name>: <pct>%" bar. A missing value renders as an
// empty bar with "-" text.
func percentBar(name string, n telemetry.Number) panel.Bar {
	text := percentText(n)
	return panel.NewBar(name+": "+text, text, n.Float())
}

func diskBar(d telemetry.DiskStats) panel.Bar {
	percent := telemetry.ClampPercent(d.UsedFraction())

	label := "Disk"
	if d.Mount != "" {
		label = "Disk " + string(d.Mount)
	}

	text := telemetry.FormatPercent(telemetry.Num(percent)) + "%"
	if d.UsedGB.Valid && d.TotalGB.Valid {
		text = telemetry.FormatSize(d.UsedGB.Value) + " / " + telemetry.FormatSize(d.TotalGB.Value)
	}
	return panel.NewBar(label, text, percent)
}

func percentText(n telemetry.Number) string {
	if !n.Valid {
		return "-"
	}
	return telemetry.FormatPercent(n) + "%"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
