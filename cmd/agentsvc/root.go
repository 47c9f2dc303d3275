package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"agentsvc/internal/config"
	"agentsvc/internal/di"
	"agentsvc/internal/utils"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool

	// env overrides process environment lookups; nil uses os.LookupEnv.
	env config.EnvLookup

	// logOutput receives structured logs; nil means stderr.
	logOutput io.Writer
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&cli{})
}

func newRootCommandWith(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentsvc",
		Short: "Structured-output LLM agents for content analysis and Q&A",
		Long: fmt.Sprintf(`%s

Routes requests to two agents: an analysis agent returning a summary, key
points, sentiment and confidence, and a Q&A agent returning an answer with
confidence and sources. Both may consult the request's knowledge base.

%s
  agentsvc serve                              # HTTP API on :8000
  agentsvc analyze "Quarterly revenue rose"   # One-shot analysis
  agentsvc ask "What is the capital?" --context ctx.yaml
  agentsvc tools search --kb kb.yaml --query capital
  agentsvc config show`,
			bold("agentsvc "+utils.Version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Configuration file (default: ./agentsvc.yaml or ~/.agentsvc/agentsvc.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Print run diagnostics to stderr")

	root.AddCommand(
		newServeCommand(c),
		newAnalyzeCommand(c),
		newAskCommand(c),
		newComplexCommand(c),
		newToolsCommand(),
		newSchemaCommand(),
		newConfigCommand(c),
		newVersionCommand(),
	)
	return root
}

func (c *cli) loadConfig() (config.Config, config.Metadata, error) {
	var opts []config.Option
	if c.configPath != "" {
		opts = append(opts, config.WithConfigPath(c.configPath))
	}
	if c.env != nil {
		opts = append(opts, config.WithEnv(c.env))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, meta, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, meta, nil
}

func (c *cli) buildContainer() (*di.Container, error) {
	cfg, meta, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	output := c.logOutput
	if output == nil {
		output = os.Stderr
	}
	return di.BuildContainer(cfg, di.WithMetadata(meta), di.WithLogOutput(output))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentsvc %s\n", utils.Version)
		},
	}
}
