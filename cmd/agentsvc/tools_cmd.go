package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agentsvc/internal/agent/ports"
	"agentsvc/internal/tools"
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the builtin tools",
	}
	cmd.AddCommand(newToolsListCommand(), newToolsSearchCommand(), newToolsStatsCommand())
	return cmd
}

func builtinRegistry() (*tools.Registry, error) {
	registry, err := tools.NewRegistry(tools.Builtin()...)
	if err != nil {
		return nil, err
	}
	registry.Freeze()
	return registry, nil
}

func newToolsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List builtin tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := builtinRegistry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, def := range registry.Definitions() {
				fmt.Fprintf(w, "%s\t%s\n", bold(def.Name), def.Description)
			}
			return w.Flush()
		},
	}
}

func newToolsSearchCommand() *cobra.Command {
	var (
		kbPath string
		query  string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run search_knowledge_base against a knowledge base file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := runFlags{kbPath: kbPath}
			rc, err := flags.runContext()
			if err != nil {
				return err
			}
			arguments, err := json.Marshal(tools.SearchInput{Query: query})
			if err != nil {
				return err
			}
			return invokeTool(cmd, tools.SearchKnowledgeBaseName, rc, arguments)
		},
	}
	cmd.Flags().StringVar(&kbPath, "kb", "", "YAML or JSON knowledge base file")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query")
	_ = cmd.MarkFlagRequired("kb")
	return cmd
}

func newToolsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [text|-]",
		Short: "Run analyze_context on text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			arguments, err := json.Marshal(tools.AnalyzeInput{Text: text})
			if err != nil {
				return err
			}
			return invokeTool(cmd, tools.AnalyzeContextName, ports.RunContextFromMap(nil), arguments)
		},
	}
}

func invokeTool(cmd *cobra.Command, name string, rc *ports.RunContext, arguments json.RawMessage) error {
	registry, err := builtinRegistry()
	if err != nil {
		return err
	}
	result, err := registry.Invoke(cmd.Context(), name, rc, arguments)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Content)
	return err
}
