package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// Command-specific flags
var (
	snapshotJSON   bool
	statusJSON     bool
	doctorJSON     bool
	doctorFix      bool
	agentOnce      bool
	initFlags      InitOptions
	watchNoRefresh bool
)

// serveCmd serves the board over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board as a live web page",
	Long: `Poll every active node on the dashboard's refresh interval and serve
the board as a web page. Open pages update over a websocket as each node
reports.

Endpoints:
  GET  /             the board
  GET  /api/board    the board as JSON
  GET  /ws           live panel updates
  POST /api/refresh  poll now (rate limited)
  GET  /healthz      liveness

Examples:
  nodeboard serve
  nodeboard serve --listen 127.0.0.1:9000
  nodeboard serve --source https://lab.example.com/board`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd.Context())
	},
}

// watchCmd starts the terminal board
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live board in the terminal",
	Long: `Show the board in an interactive terminal UI that refreshes on the
dashboard's interval.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Poll now
  up/k        Select previous node
  down/j      Select next node
  Enter       Node details
  Esc         Back
  ?           Help

Examples:
  nodeboard watch
  nodeboard watch --source ssh://head-node/srv/board`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.Context(), !watchNoRefresh)
	},
}

// snapshotCmd polls once and prints the board
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Poll once and print the board",
	Long: `Poll every active node once, then print the rendered board and exit.

Examples:
  nodeboard snapshot
  nodeboard snapshot --json | jq '.data.panels[].label'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return snapshotCommand(cmd.Context(), os.Stdout, snapshotJSON)
	},
}

// statusCmd polls once and prints a summary
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll once and print a node summary table",
	Long: `Poll every active node once and print one line per node: state,
snapshot time, CPU, RAM and busy GPUs. Exits non-zero when any active node
is offline.

Examples:
  nodeboard status
  nodeboard status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd.Context(), os.Stdout, statusJSON)
	},
}

// doctorCmd diagnoses the setup
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check settings, the source and node snapshots",
	Long: `Run diagnostic checks and report what's wrong:

  SETTINGS   the settings file parses and validates
  SOURCE     the source opens and the dashboard documents load
  SNAPSHOTS  every active node has a readable, recent snapshot
  SSH        keys and agent, for ssh:// sources
  AGENT      nvidia-smi is available on this machine

Exits non-zero when any check fails.

Examples:
  nodeboard doctor
  nodeboard doctor --fix
  nodeboard doctor --json`,
	Annotations: map[string]string{skipSettings: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), doctorJSON, doctorFix)
	},
}

// agentCmd writes this machine's snapshot
var agentCmd = &cobra.Command{
	Use:   "agent <node>",
	Short: "Sample this machine and write <node>.json",
	Long: `Sample CPU, RAM, disks and GPUs (via nvidia-smi) and write the
snapshot the board reads. Runs until interrupted, writing every
sample interval; --once writes a single snapshot and exits.

Examples:
  nodeboard agent gpu01 --out /srv/board/data
  nodeboard agent gpu01 --once
  nodeboard agent gpu01 --interval 30s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentCommand(cmd.Context(), cmd.OutOrStdout(), args[0], agentOnce)
	},
}

// initCmd creates a starter site
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter site and .nodeboard.yaml",
	Long: `Create config/global.json, config/nodes.json and data/ in the current
directory, and a .nodeboard.yaml pointing at them. Prompts for the board
title and node names, or an SSH host to read documents from.

Examples:
  nodeboard init
  nodeboard init --non-interactive --nodes gpu01,gpu02
  nodeboard init --source ssh://head-node/srv/board`,
	Annotations: map[string]string{skipSettings: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initFlags
		opts.Source = sourceFlag
		return Init(opts)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for nodeboard.

Examples:
  # Bash
  nodeboard completion bash > /etc/bash_completion.d/nodeboard

  # Zsh
  nodeboard completion zsh > "${fpath[1]}/_nodeboard"

  # Fish
  nodeboard completion fish > ~/.config/fish/completions/nodeboard.fish`,
	Annotations: map[string]string{skipSettings: "true"},
	ValidArgs:   []string{"bash", "zsh", "fish", "powershell"},
	Args:        cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// serve flags
	serveCmd.Flags().String("listen", ":8080", "address to serve on")
	serveCmd.Flags().Float64("refresh-limit", 1, "manual refreshes allowed per second")
	bindFlag(serveCmd.Flags(), "listen", "listen")
	bindFlag(serveCmd.Flags(), "refresh_limit", "refresh-limit")

	// watch flags
	watchCmd.Flags().BoolVar(&watchNoRefresh, "no-refresh", false, "disable the 'r' key (read-only board)")

	// output flags
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "output in JSON format")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")

	// agent flags
	agentCmd.Flags().BoolVar(&agentOnce, "once", false, "write one snapshot and exit")
	agentCmd.Flags().String("out", "data", "directory to write <node>.json into")
	agentCmd.Flags().Duration("interval", config.DefaultSettings().Agent.SampleInterval, "time between samples")
	agentCmd.Flags().StringSlice("disks", nil, "disk mounts to report (default /home)")
	bindFlag(agentCmd.Flags(), "agent.out", "out")
	bindFlag(agentCmd.Flags(), "agent.sample_interval", "interval")
	bindFlag(agentCmd.Flags(), "agent.disk_mounts", "disks")

	// init flags
	initCmd.Flags().StringVar(&initFlags.Title, "title", "", "board title")
	initCmd.Flags().StringSliceVar(&initFlags.Nodes, "nodes", nil, "node names (comma-separated)")
	initCmd.Flags().BoolVarP(&initFlags.Overwrite, "force", "f", false, "overwrite existing files")
	initCmd.Flags().BoolVar(&initFlags.NonInteractive, "non-interactive", false, "skip prompts, use flags and defaults")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
