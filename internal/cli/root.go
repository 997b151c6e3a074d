package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/ui"
)

// cfgFile is the --config flag shared by every command.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gpuwatch",
	Short: "Live GPU utilization, memory and temperature from your machines",
	Long: `gpuwatch connects to GPU metrics servers over WebSocket and shows
utilization, memory and temperature for every GPU in a terminal dashboard.

Get started:
  gpuwatch conn add workstation 192.168.1.20 8080
  gpuwatch watch

Config lives in ~/.config/gpuwatch/config.yaml (override with --config).
Any key can also be set from the environment, e.g. GPUWATCH_MODE=single.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SuggestionsMinimumDistance = 2
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/gpuwatch/config.yaml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(os.Stdout, os.Stderr, err))
	}
}

// reportError prints err for a human (or as JSON in machine mode) and
// returns the exit code.
func reportError(stdout, stderr io.Writer, err error) int {
	if MachineMode() {
		_ = WriteJSONFromError(stdout, err)
		return 1
	}

	if isUnknownCommandError(err) {
		fmt.Fprintln(stderr, err)
		if name := extractUnknownCommand(err); name != "" {
			if suggestions := rootCmd.SuggestionsFor(name); len(suggestions) > 0 {
				fmt.Fprintf(stderr, "\nDid you mean %s?\n", strings.Join(suggestions, " or "))
			}
		}
		fmt.Fprintln(stderr, "\nRun 'gpuwatch --help' for usage.")
		return 2
	}

	var gwErr *errors.Error
	if stderrors.As(err, &gwErr) {
		fmt.Fprint(stderr, gwErr.Error())
		return 1
	}
	fmt.Fprintf(stderr, "%s %v\n", ui.SymbolFail, err)
	return 1
}

// isUnknownCommandError reports whether cobra rejected the command line itself.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "gpuwatch"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
