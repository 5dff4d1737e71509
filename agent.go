package scholar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrMaxIterations is returned alongside a best-effort answer when the
// planner never decided to answer within the iteration limit.
var ErrMaxIterations = errors.New("max iterations reached; returning best-effort answer")

const maxSeedQueryLen = 200

// Agent coordinates the planner, the capabilities, the synthesizer and the
// finalizer. An Agent holds no per-run state and is safe for concurrent use
// when its providers are.
type Agent struct {
	name          string
	capabilities  []Capability
	fetcher       FetchProvider
	planner       LLMProvider
	synthesizer   LLMProvider
	finalizer     LLMProvider
	instructions  []string
	maxIterations int
	searchCost    float64
	logger        *zap.Logger
}

// New constructs an Agent with optional configuration.
func New(opts ...Option) *Agent {
	a := &Agent{
		name:          "agent",
		maxIterations: defaultMaxIterations,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.finalizer == nil {
		a.finalizer = a.synthesizer
	}
	return a
}

// Name returns the label given with WithName.
func (a *Agent) Name() string { return a.name }

// Capabilities returns the names of the configured capabilities in order.
func (a *Agent) Capabilities() []string {
	names := make([]string, 0, len(a.capabilities))
	for _, c := range a.capabilities {
		names = append(names, c.Name)
	}
	return names
}

// Run loops until an answer is produced or the limit is reached. When the
// limit is reached the best-effort answer is returned with ErrMaxIterations.
func (a *Agent) Run(ctx context.Context, message string, opts ...RunOption) (Result, error) {
	cfg := newRunConfig(opts)

	message = strings.TrimSpace(message)
	if message == "" {
		return Result{}, errors.New("message is empty")
	}
	if a.planner == nil {
		return Result{}, errors.New("planner model is not configured")
	}
	if a.synthesizer == nil {
		return Result{}, errors.New("synthesizer model is not configured")
	}

	pad := NewScratchpad(message)
	pad.Knowledge = strings.TrimSpace(cfg.priorKnowledge)
	var cost float64

	for i := 0; i < a.maxIterations; i++ {
		pad.IterationCount = i + 1

		decision, c, err := a.plan(ctx, pad)
		cost += c
		if err != nil {
			return Result{Cost: cost}, fmt.Errorf("planner: %w", err)
		}

		switch decision.Action {
		case PlannerActionAnswer:
			if strings.TrimSpace(pad.Knowledge) != "" {
				return a.finish(ctx, &pad, cost)
			}
			// Answers must be grounded: search once with the seed query first.
			if len(a.capabilities) == 0 {
				return Result{Cost: cost}, errors.New("cannot answer without search: no capability configured")
			}
			query := seedQuery(cfg.seedQuery, message)
			c, err := a.search(ctx, &pad, a.capabilities[0], query, true)
			cost += c
			if err != nil {
				return Result{Cost: cost}, err
			}
		case PlannerActionSearch:
			capability, ok := a.capability(decision.Tool)
			if !ok {
				return Result{Cost: cost}, errors.New("search requested but no capability configured")
			}
			c, err := a.search(ctx, &pad, capability, decision.Query, false)
			cost += c
			if err != nil {
				return Result{Cost: cost}, err
			}
		case PlannerActionFetch:
			if a.fetcher == nil {
				return Result{Cost: cost}, errors.New("fetch requested but no fetch provider configured")
			}
			c, err := a.fetch(ctx, &pad, decision.URL)
			cost += c
			if err != nil {
				return Result{Cost: cost}, err
			}
		default:
			return Result{Cost: cost}, fmt.Errorf("unknown planner action: %s", decision.Action)
		}
	}

	res, err := a.finish(ctx, &pad, cost)
	if err != nil {
		return res, fmt.Errorf("max iterations reached without answer: %w", err)
	}
	a.logger.Warn("iteration limit reached",
		zap.String("agent", a.name),
		zap.Int("iterations", a.maxIterations))
	return res, ErrMaxIterations
}

// capability resolves the tool the planner named. Unknown or empty names
// fall back to the first configured capability.
func (a *Agent) capability(name string) (Capability, bool) {
	if len(a.capabilities) == 0 {
		return Capability{}, false
	}
	name = normalizeName(name)
	for _, c := range a.capabilities {
		if c.Name == name {
			return c, true
		}
	}
	if name != "" {
		a.logger.Debug("planner named unknown tool; using default",
			zap.String("agent", a.name),
			zap.String("tool", name),
			zap.String("default", a.capabilities[0].Name))
	}
	return a.capabilities[0], true
}

func (a *Agent) search(ctx context.Context, pad *Scratchpad, c Capability, query string, forced bool) (float64, error) {
	results, err := c.Provider.Search(ctx, query)
	if err != nil {
		return a.searchCost, fmt.Errorf("search %s: %w", c.Name, err)
	}
	entry := fmt.Sprintf("search[%d] %s: %s", pad.IterationCount, c.Name, query)
	if forced {
		entry += " (forced)"
	}
	pad.AppendHistory(entry)
	pad.AddSources(results)
	a.logger.Debug("search completed",
		zap.String("agent", a.name),
		zap.String("tool", c.Name),
		zap.String("query", query),
		zap.Int("results", len(results)))

	c2, err := a.synthesize(ctx, pad, fmt.Sprintf("%s search: %s", c.Name, query), results)
	if err != nil {
		return a.searchCost + c2, fmt.Errorf("synthesizer: %w", err)
	}
	return a.searchCost + c2, nil
}

func (a *Agent) fetch(ctx context.Context, pad *Scratchpad, url string) (float64, error) {
	text, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return a.searchCost, fmt.Errorf("fetch: %w", err)
	}
	pad.AppendHistory(fmt.Sprintf("fetch[%d]: %s", pad.IterationCount, url))
	page := SearchResult{Title: "Fetched page", URL: url, Snippet: text}
	pad.AddSources([]SearchResult{page})

	c, err := a.synthesize(ctx, pad, "fetch: "+url, []SearchResult{page})
	if err != nil {
		return a.searchCost + c, fmt.Errorf("synthesizer: %w", err)
	}
	return a.searchCost + c, nil
}

func (a *Agent) finish(ctx context.Context, pad *Scratchpad, cost float64) (Result, error) {
	answer, c, err := a.finalize(ctx, *pad)
	cost += c
	if err != nil {
		return Result{Cost: cost, Knowledge: pad.Knowledge}, fmt.Errorf("finalizer: %w", err)
	}
	return Result{
		Content:   answer,
		Cost:      cost,
		Knowledge: pad.Knowledge,
		Sources:   pad.Sources,
	}, nil
}

func (a *Agent) plan(ctx context.Context, pad Scratchpad) (PlannerDecision, float64, error) {
	user := buildPlannerUserPrompt(pad, a.capabilities, a.fetcher != nil, a.instructions)
	raw, cost, err := a.generate(ctx, "planner", a.planner, plannerSystemPrompt, user)
	if err != nil {
		return PlannerDecision{}, cost, err
	}
	decision, err := parsePlannerDecision(raw)
	return decision, cost, err
}

func (a *Agent) synthesize(ctx context.Context, pad *Scratchpad, source string, results []SearchResult) (float64, error) {
	user := buildSynthesizerUserPrompt(*pad, source, results)
	text, cost, err := a.generate(ctx, "synthesizer", a.synthesizer, synthesizerSystemPrompt, user)
	if err != nil {
		return cost, err
	}
	pad.Knowledge = text
	pad.CurrentStep = "Last call: " + source
	return cost, nil
}

func (a *Agent) finalize(ctx context.Context, pad Scratchpad) (string, float64, error) {
	if a.finalizer == nil {
		return "", 0, errors.New("finalizer model is not configured")
	}
	user := buildFinalizerUserPrompt(pad, a.instructions)
	return a.generate(ctx, "finalizer", a.finalizer, finalizerSystemPrompt, user)
}

// generate calls the model and returns its usable text.
func (a *Agent) generate(ctx context.Context, step string, m LLMProvider, sys, user string) (string, float64, error) {
	a.logger.Debug("llm request",
		zap.String("agent", a.name),
		zap.String("step", step),
		zap.String("system", sys),
		zap.String("user", user))
	resp, err := m.Generate(ctx, sys, user)
	if err != nil {
		return "", 0, err
	}
	text, fromReasoning := getContent(resp)
	a.logger.Debug("llm response",
		zap.String("agent", a.name),
		zap.String("step", step),
		zap.String("text", text),
		zap.Bool("from_reasoning", fromReasoning),
		zap.Float64("cost", resp.Cost))
	return text, resp.Cost, nil
}

// seedQuery picks the query for a forced search: the explicit seed, or the
// first non-empty line of the message, truncated.
func seedQuery(seed, message string) string {
	if s := strings.TrimSpace(seed); s != "" {
		return s
	}
	for _, line := range strings.Split(message, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if r := []rune(line); len(r) > maxSeedQueryLen {
				line = string(r[:maxSeedQueryLen])
			}
			return line
		}
	}
	return message
}
