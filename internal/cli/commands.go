package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpuwatch/internal/config"
	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// Command-specific flags
var (
	connAddNameFlag string
	connAddHostFlag string
	connAddPortFlag string
	connAddSkipTest bool
	connRemoveYes   bool
	connListCheck   bool
	connTimeoutFlag string
	watchFlags      WatchFlags
)

// connCmd groups connection management
var connCmd = &cobra.Command{
	Use:   "conn",
	Short: "Manage saved GPU server connections",
	Long: `Add, remove, list and test the GPU servers gpuwatch talks to.

Connections are saved in the store and come back on the next start.`,
}

var connAddCmd = &cobra.Command{
	Use:   "add [name] [host] [port]",
	Short: "Save a new connection",
	Long: `Save a GPU metrics server connection.

Without arguments on a terminal, you'll be offered your SSH host aliases
and a short form. The server is tested with one /gpu request before saving
unless --skip-test is given. Port defaults to ` + DefaultPort + `.

Examples:
  gpuwatch conn add
  gpuwatch conn add lab gpu-box
  gpuwatch conn add lab 10.0.0.5 9000 --skip-test`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := ConnAddOptions{
			Name:     connAddNameFlag,
			Host:     connAddHostFlag,
			Port:     connAddPortFlag,
			SkipTest: connAddSkipTest,
		}
		if len(args) > 0 {
			opts.Name = args[0]
		}
		if len(args) > 1 {
			opts.Host = args[1]
		}
		if len(args) > 2 {
			opts.Port = args[2]
		}
		return connAdd(cmd.OutOrStdout(), opts)
	},
}

var connRemoveCmd = &cobra.Command{
	Use:     "remove [id|name]",
	Aliases: []string{"rm"},
	Short:   "Remove a saved connection",
	Long: `Remove a saved connection and close its socket.

Examples:
  gpuwatch conn remove
  gpuwatch conn remove 3 --yes
  gpuwatch conn rm lab -y`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := ConnRemoveOptions{Yes: connRemoveYes}
		if len(args) > 0 {
			opts.Ref = args[0]
		}
		return connRemove(cmd.OutOrStdout(), opts)
	},
}

var connListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved connections",
	Long: `List saved connections.

With --check each one gets a single /gpu request and the table shows
whether it answered.

Examples:
  gpuwatch conn list
  gpuwatch conn list --check
  gpuwatch conn list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, err := ParseDurationFlag("timeout", connTimeoutFlag)
		if err != nil {
			return err
		}
		if timeout == 0 {
			timeout = DefaultProbeTimeout
		}
		return connList(cmd.OutOrStdout(), connListCheck, timeout)
	},
}

var connTestCmd = &cobra.Command{
	Use:   "connect-test [id|name|host:port]",
	Short: "Send one /gpu request and show the reply",
	Long: `Dial a GPU server, request one sample and print the devices it reports.

With no argument every saved connection is tested. An address that isn't
saved can be tested directly as host:port.

Examples:
  gpuwatch conn connect-test
  gpuwatch conn connect-test lab
  gpuwatch conn connect-test 10.0.0.5:9000 --timeout 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, err := ParseDurationFlag("timeout", connTimeoutFlag)
		if err != nil {
			return err
		}
		opts := ConnTestOptions{Timeout: timeout}
		if len(args) > 0 {
			opts.Ref = args[0]
		}
		return connTest(cmd.OutOrStdout(), opts)
	},
}

// watchCmd starts the dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live GPU dashboard for every saved connection",
	Long: `Connect to every saved GPU server and show utilization, memory and
temperature as they arrive.

On a terminal this opens the full-screen dashboard. When output is piped,
or with --plain, one line is printed per update instead.

Keyboard shortcuts:
  up/k, down/j  Select previous / next connection
  enter         Detail view for the selected connection
  esc           Back
  c / d         Connect / disconnect the selected connection
  a / x         Connect / disconnect all
  l             Toggle live streaming
  r             Request one sample now
  t             Cycle theme
  ?             Show help
  q / Ctrl+C    Quit

Examples:
  gpuwatch watch
  gpuwatch watch --mode single --stream live
  gpuwatch watch --plain --poll-interval 2s
  gpuwatch watch --metrics-addr 127.0.0.1:9400`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch(cmd.Context(), cmd.OutOrStdout(), watchFlags)
	},
}

var themeCmd = &cobra.Command{
	Use:   "theme [show|set <theme>|cycle]",
	Short: "Show or change the dashboard theme",
	Long: `Show or change the saved dashboard theme (light, dark or system).

Examples:
  gpuwatch theme
  gpuwatch theme set dark
  gpuwatch theme cycle`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return themeShow(cmd.OutOrStdout())
	},
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return themeShow(cmd.OutOrStdout())
	},
}

var themeSetCmd = &cobra.Command{
	Use:       "set <theme>",
	Short:     "Save a theme",
	ValidArgs: []string{"light", "dark", "system"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return themeSet(cmd.OutOrStdout(), args[0])
	},
}

var themeCycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Switch to the next theme (system, light, dark)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return themeSet(cmd.OutOrStdout(), "")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit configuration",
	Long: `Show the effective configuration or change a single key.

Values can also come from the environment, e.g. ` + config.EnvPrefix + `_MODE=single.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShow(cmd.OutOrStdout())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key",
	Long: `Write a single key to the config file. The file's comments and other
keys are left alone. If the result doesn't validate, the old file is kept.

Examples:
  gpuwatch config set mode single
  gpuwatch config set poll_interval 2s
  gpuwatch config set thresholds.temperature.critical 90`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.SettableKeys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSet(cmd.OutOrStdout(), args[0], args[1])
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for gpuwatch.

Examples:
  # Bash
  gpuwatch completion bash > /etc/bash_completion.d/gpuwatch

  # Zsh
  gpuwatch completion zsh > "${fpath[1]}/_gpuwatch"

  # Fish
  gpuwatch completion fish > ~/.config/fish/completions/gpuwatch.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if out == nil {
			out = os.Stdout
		}
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
			return errors.NewValidation(
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// conn add flags
	connAddCmd.Flags().StringVar(&connAddNameFlag, "name", "", "connection name")
	connAddCmd.Flags().StringVar(&connAddHostFlag, "host", "", "host name, address or SSH alias")
	connAddCmd.Flags().StringVar(&connAddPortFlag, "port", "", "port (default "+DefaultPort+")")
	connAddCmd.Flags().BoolVar(&connAddSkipTest, "skip-test", false, "save without testing the server first")

	// conn remove flags
	connRemoveCmd.Flags().BoolVarP(&connRemoveYes, "yes", "y", false, "don't ask for confirmation")

	// conn list / connect-test flags
	connListCmd.Flags().BoolVar(&connListCheck, "check", false, "test each connection")
	connListCmd.Flags().StringVar(&connTimeoutFlag, "timeout", "", "per-connection test timeout (e.g., 2s)")
	connListCmd.Flags().BoolVar(&machineMode, "json", false, "output as JSON")
	connTestCmd.Flags().StringVar(&connTimeoutFlag, "timeout", "", "test timeout (e.g., 2s)")
	connTestCmd.Flags().BoolVar(&machineMode, "json", false, "output as JSON")
	themeShowCmd.Flags().BoolVar(&machineMode, "json", false, "output as JSON")

	AddWatchFlags(watchCmd, &watchFlags)

	connCmd.AddCommand(connAddCmd, connRemoveCmd, connListCmd, connTestCmd)
	themeCmd.AddCommand(themeShowCmd, themeSetCmd, themeCycleCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)

	// Register all commands
	rootCmd.AddCommand(connCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}
