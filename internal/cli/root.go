package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/ui"
	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// Global flags
var (
	cfgFile    string
	sourceFlag string
	verbose    bool
	quiet      bool
	noColor    bool
)

// v holds settings from defaults, the settings file, env and bound flags.
var v = config.NewViper()

// settings is resolved once per invocation by the root pre-run hook.
var settings *config.Settings

// skipSettings marks commands that run without loading settings.
const skipSettings = "skip-settings"

var rootCmd = &cobra.Command{
	Use:   "nodeboard",
	Short: "Status board for a cluster of GPU machines",
	Long: `nodeboard shows every GPU machine in your cluster on one board.

Each node runs 'nodeboard agent' to write a JSON snapshot of its CPU, RAM,
disk and GPU usage. The board reads those snapshots from a directory, an
HTTP server, or a host over SSH, and refreshes them on a fixed interval.

  nodeboard serve     - Serve the board as a web page
  nodeboard watch     - Live board in the terminal
  nodeboard snapshot  - Poll once and print the board
  nodeboard status    - Poll once and print a summary table
  nodeboard doctor    - Diagnose settings, source and snapshots
  nodeboard agent     - Write this machine's snapshot
  nodeboard init      - Create a starter site`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
		if verbose {
			os.Setenv(logger.DebugEnv, "1")
		}
		if quiet {
			log.SetOutput(io.Discard)
		}

		if cmd.Annotations[skipSettings] != "" {
			return nil
		}
		return loadSettings()
	},
}

func loadSettings() error {
	s, _, err := config.LoadSettings(v, cfgFile)
	if err != nil {
		return err
	}
	settings = s
	sshutil.StrictHostKeyChecking = s.StrictHostKeyChecking
	return nil
}

// Settings returns the resolved settings, loading them on first use.
func Settings() (*config.Settings, error) {
	if settings == nil {
		if err := loadSettings(); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func init() {
	log.SetFlags(log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "settings file (default: .nodeboard.yaml, then ~/.config/nodeboard/config.yaml)")
	pf.StringVarP(&sourceFlag, "source", "s", "", "where documents are read from: a directory, http(s):// URL, or ssh://host/dir")
	pf.Duration("timeout", config.DefaultSettings().Timeout, "per-node fetch timeout")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress log output")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	bindFlag(pf, "source", "source")
	bindFlag(pf, "timeout", "timeout")
}

// bindFlag makes flag name in fs override settings key when it is set.
func bindFlag(fs *pflag.FlagSet, key, name string) {
	f := fs.Lookup(name)
	if f == nil {
		panic("bindFlag: no flag --" + name)
	}
	_ = v.BindPFlag(key, f)
}

// Execute runs the root command and exits non-zero on failure.
// Interrupts cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if isUnknownCommandError(err) {
			if name := extractUnknownCommand(err); name != "" {
				fmt.Fprintf(os.Stderr, "\n'%s' isn't a nodeboard command.\n", name)
			}
			fmt.Fprintln(os.Stderr, "Run 'nodeboard --help' for the list of commands.")
		}
		os.Exit(1)
	}
}

// isUnknownCommandError reports whether cobra rejected the command line itself.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "nodeboard"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
