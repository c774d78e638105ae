package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/doctor"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/source"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
	"github.com/rileyhilliard/nodeboard/internal/ui"
	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCategories is the display order of check categories.
var doctorCategories = []string{"SETTINGS", "SOURCE", "SNAPSHOTS", "SSH", "AGENT"}

// staleFactor times the agent sample interval is how old a snapshot may get
// before doctor calls it stale.
const staleFactor = 3

// doctorCommand checks settings, the source, every active node's snapshot
// and the local agent prerequisites, then prints a grouped report.
func doctorCommand(ctx context.Context, w io.Writer, asJSON, fix bool) error {
	if asJSON {
		machineMode = true
	}

	s, path, err := config.LoadSettings(v, cfgFile)
	settingsCheck := &doctor.SettingsCheck{Path: path, Settings: s, Err: err}
	checks := []doctor.Check{settingsCheck}
	results := doctor.RunAll(ctx, checks)

	if err == nil {
		settings = s
		sshutil.StrictHostKeyChecking = s.StrictHostKeyChecking
		more, moreResults := runSiteChecks(ctx, s)
		checks = append(checks, more...)
		results = append(results, moreResults...)
	} else {
		s = config.DefaultSettings()
	}

	agentChecks := []doctor.Check{&doctor.NvidiaCheck{Binary: s.Agent.NvidiaSMI}}
	checks = append(checks, agentChecks...)
	results = append(results, doctor.RunAll(ctx, agentChecks)...)

	if fix {
		results = attemptFixes(ctx, checks, results)
	}

	if asJSON {
		if err := WriteJSONSuccess(w, buildDoctorOutput(checks, results)); err != nil {
			return err
		}
	} else {
		outputDoctorText(w, checks, results, fix)
	}

	if doctor.HasFailures(results) {
		n := doctor.CountByStatus(results)[doctor.StatusFail]
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%d check%s failed", n, pluralSuffix(n)),
			"Fix the items marked "+ui.SymbolFail+" above and run 'nodeboard doctor' again.")
	}
	return nil
}

// runSiteChecks opens the source, loads the dashboard through it and, when
// that works, checks each active node's snapshot in parallel.
func runSiteChecks(ctx context.Context, s *config.Settings) ([]doctor.Check, []doctor.CheckResult) {
	src := &doctor.SourceCheck{Settings: s}
	dash := &doctor.DashboardCheck{Source: src, ConfigPath: s.ConfigPath}
	checks := []doctor.Check{src, dash}
	results := doctor.RunAll(ctx, checks)
	if src.Source != nil {
		defer src.Source.Close() //nolint:errcheck
	}

	if host, _, err := source.ParseSSH(s.Source); err == nil {
		sshChecks := doctor.NewSSHChecks(host)
		checks = append(checks, sshChecks...)
		results = append(results, doctor.RunAllParallel(ctx, sshChecks)...)
	}

	if dash.Dashboard == nil {
		return checks, results
	}

	active := dash.Dashboard.Active()
	nodes := make([]string, len(active))
	for i, n := range active {
		nodes[i] = n.Name
	}
	snapChecks := doctor.NewSnapshotChecks(nodes,
		telemetry.NewFetcher(src.Source, s.DataPath),
		s.Timeout, staleFactor*s.Agent.SampleInterval)
	checks = append(checks, snapChecks...)
	results = append(results, doctor.RunAllParallel(ctx, snapChecks)...)
	return checks, results
}

// attemptFixes tries to fix issues where possible.
func attemptFixes(ctx context.Context, checks []doctor.Check, results []doctor.CheckResult) []doctor.CheckResult {
	for i, result := range results {
		if result.Fixable && (result.Status == doctor.StatusFail || result.Status == doctor.StatusWarn) {
			if err := checks[i].Fix(); err == nil {
				// Re-run the check to see if it's fixed
				results[i] = checks[i].Run(ctx)
			}
		}
	}
	return results
}

// groupResults returns result indices per category, in display order.
func groupResults(checks []doctor.Check) ([]string, map[string][]int) {
	grouped := make(map[string][]int)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], i)
	}
	var order []string
	for _, cat := range doctorCategories {
		if len(grouped[cat]) > 0 {
			order = append(order, cat)
		}
	}
	return order, grouped
}

func buildDoctorOutput(checks []doctor.Check, results []doctor.CheckResult) DoctorOutput {
	order, grouped := groupResults(checks)

	output := DoctorOutput{
		Categories: make([]CategoryOutput, 0, len(order)),
	}
	for _, cat := range order {
		co := CategoryOutput{Name: cat}
		for _, idx := range grouped[cat] {
			co.Results = append(co.Results, results[idx])
		}
		output.Categories = append(output.Categories, co)
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

// outputDoctorText outputs results in human-readable format.
func outputDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult, fixed bool) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("nodeboard diagnostic report"))
	fmt.Fprintln(w)

	order, grouped := groupResults(checks)
	for _, category := range order {
		fmt.Fprintln(w, headerStyle.Render(category))
		for _, idx := range grouped[category] {
			label := ""
			if category == "SNAPSHOTS" {
				label = strings.TrimPrefix(results[idx].Name, "node:")
			}
			renderCheckResult(w, label, results[idx])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", successStyle.Render(ui.SymbolSuccess), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(ui.SymbolFail), doctor.Summary(results))

		if doctor.FixableCount(results) > 0 && !fixed {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  Run with %s to attempt automatic fixes where possible.\n",
				mutedStyle.Render("--fix"))
		}
	}
	fmt.Fprintln(w)
}

// renderCheckResult renders a single check result, prefixed with label
// when one is given.
func renderCheckResult(w io.Writer, label string, result doctor.CheckResult) {
	symbol, style := ui.SymbolComplete, lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	switch result.Status {
	case doctor.StatusWarn:
		style = lipgloss.NewStyle().Foreground(ui.ColorWarning)
	case doctor.StatusFail:
		symbol, style = ui.SymbolFail, lipgloss.NewStyle().Foreground(ui.ColorError)
	}

	msg := result.Message
	if label != "" {
		msg = label + ": " + msg
	}
	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), msg)

	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		muted := lipgloss.NewStyle().Foreground(ui.ColorMuted)
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", muted.Render(line))
		}
	}
}

// pluralSuffix returns "s" if n != 1.
func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
