package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentsvc/internal/schema"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the structured output contracts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List output contracts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			registry := schema.Builtin()
			for _, name := range registry.Names() {
				s, _ := registry.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", bold(name), s.Description())
			}
		},
	})

	var asJSONSchema bool
	show := &cobra.Command{
		Use:       "show NAME",
		Short:     "Show an output contract as the model sees it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{schema.AnalysisName, schema.QAName},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schema.Builtin().Get(args[0])
			if err != nil {
				return err
			}
			if asJSONSchema {
				return writeJSON(cmd.OutOrStdout(), s.JSONSchema())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s.Describe())
			return err
		},
	}
	show.Flags().BoolVar(&asJSONSchema, "json-schema", false, "Print the JSON Schema sent as the response format")
	cmd.AddCommand(show)
	return cmd
}
