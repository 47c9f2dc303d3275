package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"agentsvc/internal/agent"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY reports whether stdout is attached to a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func errorLine(msg string) string {
	return red("✗ " + msg)
}

// envelope mirrors the /analyze and /qa response body.
type envelope struct {
	Success bool    `json:"success"`
	Result  any     `json:"result"`
	Error   *string `json:"error"`
}

func newEnvelope(result *agent.RunResult, err error) envelope {
	if err != nil {
		msg := err.Error()
		return envelope{Success: false, Error: &msg}
	}
	return envelope{Success: true, Result: result.Output}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if isTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(value)
}

// writeDiagnostics prints a run summary and its tool trace.
func writeDiagnostics(w io.Writer, result *agent.RunResult, err error) {
	if result == nil {
		return
	}
	status := green("✓")
	if err != nil {
		status = red("✗")
	}
	fmt.Fprintf(w, "%s %s run %s in %s (rounds=%d model_calls=%d validation_attempts=%d tokens=%d)\n",
		status, bold(result.Agent), result.RunID, result.Duration.Round(time.Millisecond),
		result.Rounds, result.ModelCalls, result.ValidationAttempts, result.Usage.TotalTokens)
	if len(result.States) > 0 {
		states := make([]string, 0, len(result.States))
		for _, s := range result.States {
			states = append(states, s.String())
		}
		fmt.Fprintf(w, "  %s %s\n", gray("states:"), strings.Join(states, " → "))
	}
	for _, inv := range result.Trace {
		outcome := truncate(inv.Output, 80)
		if inv.Failed() {
			outcome = red(string(inv.ErrorKind) + ": " + truncate(inv.Error, 80))
		}
		fmt.Fprintf(w, "  %s %s(%s) %s %s\n",
			cyan(fmt.Sprintf("[%d]", inv.Round)), inv.Tool, truncate(string(inv.Arguments), 60),
			gray(inv.Duration.Round(time.Microsecond).String()), outcome)
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
