package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/dispatch"
)

type runFlags struct {
	contextPath string
	kbPath      string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.contextPath, "context", "", "YAML or JSON file holding the request context object")
	cmd.Flags().StringVar(&f.kbPath, "kb", "", "YAML or JSON file holding only the knowledge base")
}

// runContext assembles the request context from --context and --kb. A --kb
// file replaces any knowledge_base the context file carries.
func (f *runFlags) runContext() (*ports.RunContext, error) {
	if f.contextPath == "" && f.kbPath == "" {
		return ports.RunContextFromMap(nil), nil
	}

	raw := json.RawMessage("{}")
	if f.contextPath != "" {
		doc, err := readDocument(f.contextPath)
		if err != nil {
			return nil, err
		}
		raw = doc
	}
	if f.kbPath != "" {
		kb, err := readDocument(f.kbPath)
		if err != nil {
			return nil, err
		}
		merged, err := withKnowledgeBase(raw, kb)
		if err != nil {
			return nil, err
		}
		raw = merged
	}

	rc, err := ports.NewRunContext(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid context: %w", err)
	}
	return rc, nil
}

func withKnowledgeBase(contextDoc, kb json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(contextDoc, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("context must be a JSON object")
	}
	fields[ports.KnowledgeBaseKey] = kb
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readInput joins args, or reads stdin when there are none or the only arg is "-".
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newAnalyzeCommand(c *cli) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "analyze [text|-]",
		Short: "Analyze content and print the structured result",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return c.runTask(cmd, dispatch.TaskAnalysis, dispatch.Payload{Content: content}, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAskCommand(c *cli) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "ask [question|-]",
		Short: "Answer a question and print the structured result",
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return c.runTask(cmd, dispatch.TaskQA, dispatch.Payload{Question: question}, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newComplexCommand(c *cli) *cobra.Command {
	var (
		flags    runFlags
		taskType string
		content  string
		question string
	)
	cmd := &cobra.Command{
		Use:   "complex",
		Short: "Dispatch a task by type, as POST /complex does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTask(cmd, taskType, dispatch.Payload{Content: content, Question: question}, &flags)
		},
	}
	cmd.Flags().StringVarP(&taskType, "task-type", "t", "", "Task type: analysis or qa")
	cmd.Flags().StringVar(&content, "content", "", "Content for analysis tasks")
	cmd.Flags().StringVar(&question, "question", "", "Question for qa tasks")
	_ = cmd.MarkFlagRequired("task-type")
	flags.register(cmd)
	return cmd
}

func (c *cli) runTask(cmd *cobra.Command, taskType string, payload dispatch.Payload, flags *runFlags) error {
	rc, err := flags.runContext()
	if err != nil {
		return err
	}
	payload.Context = rc

	container, err := c.buildContainer()
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = container.Shutdown(ctx)
	}()

	ctx, stop := signalContext()
	defer stop()

	result, runErr := container.Dispatcher.Dispatch(ctx, taskType, payload)
	if c.verbose {
		writeDiagnostics(cmd.ErrOrStderr(), result, runErr)
	}
	if agent.KindOf(runErr) == agent.UnknownTaskType {
		return fmt.Errorf("%w (expected one of %s)", runErr, strings.Join(container.Dispatcher.TaskTypes(), ", "))
	}
	if err := writeJSON(cmd.OutOrStdout(), newEnvelope(result, runErr)); err != nil {
		return err
	}
	if runErr != nil {
		return errors.New("run failed")
	}
	return nil
}
