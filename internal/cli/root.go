// Package cli wires a cobra command tree around the daemon, ledger, and
// config packages.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version and Commit are set via LDFLAGS at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	verbose    bool
	configFile string
)

// NewRootCmd builds the filewatchd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filewatchd",
		Short: "Pattern-matched folder watcher and command dispatcher",
		Long: `filewatchd watches a configurable set of directories for files whose
names match user-supplied regular expressions and, on each match, invokes
an associated external command with the file's absolute path.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", "/etc/filewatchd/filewatchd.ini", "path to config file")

	root.AddCommand(newTestCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newReprocessCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newUninstallCmd())
	root.AddCommand(newVersionCmd())

	return root
}
