package dispatch

import (
	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/schema"
	"agentsvc/internal/tools"
)

const analysisInstructions = `You are an expert analyst providing thorough content analysis.

Your analysis should:
1. Be objective and data-driven
2. Identify the most important insights
3. Assess the overall sentiment accurately
4. Provide a confidence score based on content clarity
5. Categorize the content appropriately

Always structure your output according to the AnalysisOutput schema.`

const qaInstructions = `You are a helpful Q&A assistant. Provide clear, concise answers to questions.

Guidelines:
1. Answer directly and accurately
2. Be concise but complete
3. Admit when you're unsure (lower confidence)
4. Cite sources when available`

// NewAnalysisAgent builds the content analysis agent. It can search the
// knowledge base and compute text statistics.
func NewAnalysisAgent(model ports.LLMClient, opts ...agent.Option) (*agent.Agent, error) {
	base := []agent.Option{
		agent.WithInstructions(analysisInstructions),
		agent.WithTools(tools.NewSearchKnowledgeBaseTool(), tools.NewAnalyzeContextTool()),
	}
	return agent.New(TaskAnalysis, model, schema.Analysis, append(base, opts...)...)
}

// NewQAAgent builds the question answering agent.
func NewQAAgent(model ports.LLMClient, opts ...agent.Option) (*agent.Agent, error) {
	base := []agent.Option{
		agent.WithInstructions(qaInstructions),
		agent.WithTools(tools.NewSearchKnowledgeBaseTool()),
	}
	return agent.New(TaskQA, model, schema.QA, append(base, opts...)...)
}
