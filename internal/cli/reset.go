package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/filewatchd/internal/config"
	"github.com/ppiankov/filewatchd/internal/ledger"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Truncate the processed-files ledger",
		Long:  "Empties the ledger so every already-processed file is eligible to be matched and executed again on the next scan or change event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			led, err := ledger.Load(settings.ProcessedFilesDB)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}

			n := led.Len()
			if err := led.Truncate(); err != nil {
				return fmt.Errorf("truncate ledger: %w", err)
			}

			fmt.Printf("Cleared %d ledger entries from %s\n", n, settings.ProcessedFilesDB)
			return nil
		},
	}
}
