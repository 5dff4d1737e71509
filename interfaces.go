package scholar

import "context"

// SearchResult is a single item returned by a SearchProvider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider executes a query and returns results.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// FetchProvider retrieves readable text for a URL.
type FetchProvider interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// LLMResponse is returned by LLMProvider.Generate and carries both the
// generated text and the cost (in dollars) of the call.
type LLMResponse struct {
	Text string
	// Reasoning holds thinking tokens for models that report them separately.
	Reasoning string
	Cost      float64
}

// LLMProvider is implemented by language model clients.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
}

// Result is returned by Agent.Run and carries the final answer text
// together with the total cost accumulated during the research loop.
type Result struct {
	Content   string
	Cost      float64
	Knowledge string // collected knowledge from the research session
	Sources   []SearchResult
}

// Runner is anything that turns an instruction message into generated text.
// *Agent is the built-in implementation; the router only depends on this.
type Runner interface {
	Run(ctx context.Context, message string, opts ...RunOption) (Result, error)
}

// RunOption configures a single call to Runner.Run.
type RunOption func(*runConfig)

type runConfig struct {
	priorKnowledge string
	seedQuery      string
}

// WithKnowledge supplies prior knowledge collected from a previous run.
// This is typically the Knowledge field from a prior Result.
func WithKnowledge(knowledge string) RunOption {
	return func(c *runConfig) { c.priorKnowledge = knowledge }
}

// WithSeedQuery sets the query used when the agent is forced to search
// before it has gathered any evidence. Without it the first line of the
// message is used.
func WithSeedQuery(query string) RunOption {
	return func(c *runConfig) { c.seedQuery = query }
}

func newRunConfig(opts []RunOption) runConfig {
	var cfg runConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
