// Package cli is the thin command-line surface around the discovery core.
// Flag parsing and exit codes live here, never in the core itself.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"agentdir/internal/config"
	"agentdir/internal/core"
	"agentdir/internal/ticket"
	"agentdir/pkg/logger"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	Root       string
	TicketDB   string
	Verbose    bool
}

var globalFlags GlobalFlags

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentdir",
		Short: "Agentdir - hierarchical agent discovery",
		Long: `Agentdir discovers agent definitions across project, ancestor, user,
and system tiers, resolves precedence, and selects agents for task
descriptions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return initLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Root, "root", "r", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.TicketDB, "ticket-db", "", "sqlite activity database path (default: log only)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// initLogging loads options once to configure the process logger.
func initLogging() error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	level := opts.Log.Level
	if globalFlags.Verbose {
		level = "debug"
	}
	return logger.Init(logger.LogConfig{
		Level:  level,
		Format: opts.Log.Format,
		File:   opts.Log.File,
	})
}

// loadOptions resolves the effective configuration.
func loadOptions() (*config.Options, error) {
	path := globalFlags.ConfigPath
	if path == "" {
		defaultPath, err := config.DefaultConfigPath(config.DefaultFrameworkDirName)
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	return config.Load(path)
}

// resolveRoot returns the discovery root from flags or the working dir.
func resolveRoot() (string, error) {
	if globalFlags.Root != "" {
		return globalFlags.Root, nil
	}
	return os.Getwd()
}

// startCore builds and starts a core for one command invocation.
// The caller must Stop it.
func startCore() (*core.Core, string, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, "", err
	}
	root, err := resolveRoot()
	if err != nil {
		return nil, "", err
	}

	var sink ticket.Sink
	if globalFlags.TicketDB != "" {
		s, err := ticket.OpenSQLiteSink(globalFlags.TicketDB)
		if err != nil {
			return nil, "", err
		}
		sink = s
	}

	c := core.New(opts, sink)
	if err := c.Start(root); err != nil {
		return nil, "", err
	}
	return c, root, nil
}
