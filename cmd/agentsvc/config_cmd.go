package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"agentsvc/internal/config"
)

func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	var showSources bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, meta, err := c.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if meta.ConfigFile != "" {
				fmt.Fprintf(out, "# file: %s\n", meta.ConfigFile)
			}
			for _, warning := range meta.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", yellow("!"), warning)
			}

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			if _, err := out.Write(data); err != nil {
				return err
			}

			if showSources {
				fmt.Fprintln(out, "\n# sources")
				for _, key := range configKeys() {
					fmt.Fprintf(out, "# %s: %s\n", key, meta.Source(key))
				}
			}
			return nil
		},
	}
	show.Flags().BoolVar(&showSources, "sources", false, "Also print where each value came from")

	cmd.AddCommand(show)
	return cmd
}

func configKeys() []string {
	defaults := config.Defaults()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
