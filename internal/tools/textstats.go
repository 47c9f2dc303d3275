package tools

import (
	"context"
	"strings"
	"unicode/utf8"

	"agentsvc/internal/agent/ports"
)

const AnalyzeContextName = "analyze_context"

// TextStats is the result of analyze_context.
type TextStats struct {
	WordCount       int     `json:"word_count"`
	SentenceCount   int     `json:"sentence_count"`
	AvgWordLength   float64 `json:"avg_word_length"`
	HasQuestions    bool    `json:"has_questions"`
	HasExclamations bool    `json:"has_exclamations"`
}

// AnalyzeInput is the argument of analyze_context.
type AnalyzeInput struct {
	Text string `json:"text" jsonschema_description:"Text to analyze"`
}

// ComputeTextStats splits words on whitespace and sentences on every literal
// period, so "" has one sentence and "a. b." has three.
func ComputeTextStats(text string) TextStats {
	words := strings.Fields(text)
	stats := TextStats{
		WordCount:       len(words),
		SentenceCount:   len(strings.Split(text, ".")),
		HasQuestions:    strings.Contains(text, "?"),
		HasExclamations: strings.Contains(text, "!"),
	}
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += utf8.RuneCountInString(w)
		}
		stats.AvgWordLength = float64(total) / float64(len(words))
	}
	return stats
}

func NewAnalyzeContextTool() Spec {
	return NewTyped(AnalyzeContextName,
		"Analyze contextual information and extract insights: word count, sentence count, average word length and whether the text contains questions or exclamations.",
		func(_ context.Context, _ *ports.RunContext, in AnalyzeInput) (any, error) {
			return ComputeTextStats(in.Text), nil
		})
}

// Builtin returns the tools every agent of this service may use.
func Builtin() []Spec {
	return []Spec{NewSearchKnowledgeBaseTool(), NewAnalyzeContextTool()}
}
