package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/filewatchd/internal/daemon"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the watcher supervisor in the foreground",
		Long: `Loads configuration, starts every folder watcher and the metrics
endpoint, and blocks until interrupted (Ctrl-C) or a host-lifecycle stop
hook fires -- the same startup path "install" would run as a service,
but attached to this terminal instead of detached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := daemon.New(configFile, verbose)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}
