package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newInstallCmd and newUninstallCmd are a thin shell around the host's own
// service manager. They print the manual step rather than reimplementing
// systemd/launchd/Windows-service registration.
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Print the service-unit steps to run filewatchd under the host's service manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf(`filewatchd does not register itself as a service. Point your host's
service manager at:

    filewatchd test --config %s

For systemd, a minimal unit:

    [Unit]
    Description=filewatchd
    [Service]
    ExecStart=%s
    Restart=on-failure
    [Install]
    WantedBy=multi-user.target
`, configFile, "filewatchd test --config "+configFile)
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Print the steps to remove filewatchd from the host's service manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Disable and remove the service unit you registered with `install` through your host's service manager (e.g. `systemctl disable --now filewatchd`).")
			return nil
		},
	}
}
