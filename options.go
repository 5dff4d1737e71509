package scholar

import "go.uber.org/zap"

const defaultMaxIterations = 5

// Option configures an Agent.
type Option func(*Agent)

// WithName labels the agent in logs.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithCapability adds a search capability. A capability with the same name
// replaces the earlier one but keeps its position.
func WithCapability(c Capability) Option {
	return func(a *Agent) {
		c.Name = normalizeName(c.Name)
		for i := range a.capabilities {
			if a.capabilities[i].Name == c.Name {
				a.capabilities[i] = c
				return
			}
		}
		a.capabilities = append(a.capabilities, c)
	}
}

// WithSearchProvider registers searcher as the general web capability.
func WithSearchProvider(searcher SearchProvider) Option {
	return WithCapability(Capability{
		Name:        CapabilityWeb,
		Description: "General web search for recent information and insights.",
		Provider:    searcher,
	})
}

// WithFetchProvider sets the optional fetch implementation. When set the
// planner may read full pages.
func WithFetchProvider(fetcher FetchProvider) Option {
	return func(a *Agent) { a.fetcher = fetcher }
}

// WithModel uses m for planning, synthesis and the final answer.
func WithModel(m LLMProvider) Option {
	return func(a *Agent) {
		a.planner = m
		a.synthesizer = m
		a.finalizer = m
	}
}

// WithPlannerModel sets the model used for routing/planning.
func WithPlannerModel(m LLMProvider) Option {
	return func(a *Agent) { a.planner = m }
}

// WithSynthesizerModel sets the model used for compressing updates.
func WithSynthesizerModel(m LLMProvider) Option {
	return func(a *Agent) { a.synthesizer = m }
}

// WithFinalizerModel overrides the model used to produce the final answer.
func WithFinalizerModel(m LLMProvider) Option {
	return func(a *Agent) { a.finalizer = m }
}

// WithInstructions appends standing instructions shown to the planner and
// the finalizer on every run.
func WithInstructions(instructions ...string) Option {
	return func(a *Agent) { a.instructions = append(a.instructions, instructions...) }
}

// WithMaxIterations sets the maximum loop iterations.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithSearchCost sets the cost in dollars charged for each search or fetch.
func WithSearchCost(cost float64) Option {
	return func(a *Agent) { a.searchCost = cost }
}

// WithLogger sets the logger. Prompts and responses are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}
