package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/filewatchd/internal/config"
	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/registry"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured folders, patterns, and ledger size",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, rawRules, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			reg, err := registry.Load(settings, rawRules)
			if err != nil {
				return fmt.Errorf("load pattern registry: %w", err)
			}

			led, err := ledger.Load(settings.ProcessedFilesDB)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}

			fmt.Printf("config:            %s\n", configFile)
			fmt.Printf("web server:        enabled=%v port=%d\n", settings.WebServerEnabled, settings.WebServerPort)
			fmt.Printf("folders monitored: %d\n", len(reg.Folders()))
			fmt.Printf("patterns loaded:   %d\n", len(reg.Rules()))
			fmt.Printf("ledger entries:    %d\n", led.Len())
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "NAME\tFOLDER\tREGEX\tCOMMAND\n")
			for _, r := range reg.Rules() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.OriginalFolder, r.RawRegex, r.CommandPath)
			}
			return w.Flush()
		},
	}
}
