package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/filewatchd/internal/config"
)

func newConfigCmd() *cobra.Command {
	var writeDefault bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the active configuration, or write a fresh default",
		RunE: func(cmd *cobra.Command, args []string) error {
			if writeDefault {
				if err := config.WriteDefault(configFile); err != nil {
					return fmt.Errorf("write default config: %w", err)
				}
				fmt.Printf("Wrote default configuration to %s\n", configFile)
				return nil
			}

			settings, rawRules, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Fprint(os.Stdout, config.RenderSettings(settings))
			fmt.Println("\n[Patterns]")
			for _, r := range rawRules {
				folder := r.Folder
				if folder == "" {
					fmt.Printf("%s=%s|%s\n", r.Name, r.Regex, r.Command)
				} else {
					fmt.Printf("%s=%s|%s|%s\n", r.Name, folder, r.Regex, r.Command)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeDefault, "write-default", false, "overwrite the config file with defaults and an example pattern")
	return cmd
}
