package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/filewatchd/internal/config"
	"github.com/ppiankov/filewatchd/internal/executor"
	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
	"github.com/ppiankov/filewatchd/internal/shutdown"
)

func newReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <folder> <filename>",
		Short: "Forget a file and re-run its matching rules once",
		Long:  "Removes <folder>/<filename> from the ledger, then synchronously runs every matching rule's command for it exactly once, bypassing the running daemon's watchers entirely.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, name := args[0], args[1]
			path := filepath.Join(folder, name)

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
			if err := led.Remove(path); err != nil {
				return fmt.Errorf("remove ledger entry: %w", err)
			}

			matches := reg.Matches(name, folder)
			if len(matches) == 0 {
				fmt.Printf("No pattern matches %q in %q\n", name, folder)
				return nil
			}

			m := metrics.New()
			stop := shutdown.New()
			ex := &executor.Executor{Ledger: led, Metrics: m, Stop: stop}

			rules := reg.Rules()
			for _, idx := range matches {
				rule := rules[idx]
				result := ex.Execute(executor.Request{
					CommandPath: rule.CommandPath,
					FilePath:    path,
					RuleName:    rule.Name,
				})
				fmt.Printf("%s: %s\n", rule.Name, result)
				if result == executor.ResultCancelled {
					break
				}
			}
			return nil
		},
	}
}
