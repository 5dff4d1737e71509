// Package workbench wires configuration, capabilities, teams and model
// backends into a per-session entry point used by the server and the CLI.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/smhanov/scholar"
	"github.com/smhanov/scholar/fetch"
	"github.com/smhanov/scholar/internal/config"
	"github.com/smhanov/scholar/internal/metrics"
	"github.com/smhanov/scholar/llm"
	"github.com/smhanov/scholar/search"
)

// MsgMissingCredential is shown when a run is attempted without an API key.
const MsgMissingCredential = "Please enter your API key to proceed."

// ErrMissingCredential is returned by Run when neither the session nor the
// configuration supplies an API key.
var ErrMissingCredential = errors.New("missing API key")

// Session carries the per-user inputs that used to live in ambient UI
// state. It is passed explicitly on every call.
type Session struct {
	APIKey string
	Model  string
}

// ModelFactory creates the model backend for one team within a session.
// teamModel is the team's configured model and may be empty.
type ModelFactory func(session Session, teamModel string) (scholar.LLMProvider, error)

// Workbench routes requests for many sessions over one shared toolbox.
type Workbench struct {
	cfg       *config.Config
	teams     []scholar.TeamConfig
	tools     scholar.Toolbox
	fetcher   scholar.FetchProvider
	newModel  ModelFactory
	agentOpts []scholar.Option
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

// Option configures a Workbench.
type Option func(*Workbench)

// WithTeams replaces the team records loaded from configuration.
func WithTeams(teams []scholar.TeamConfig) Option {
	return func(w *Workbench) { w.teams = teams }
}

// WithToolbox replaces the capabilities built from configuration.
func WithToolbox(tools scholar.Toolbox) Option {
	return func(w *Workbench) { w.tools = tools }
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f scholar.FetchProvider) Option {
	return func(w *Workbench) { w.fetcher = f }
}

// WithModelFactory replaces the OpenAI-compatible model backend.
func WithModelFactory(f ModelFactory) Option {
	return func(w *Workbench) { w.newModel = f }
}

// WithMetrics records task and capability metrics on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(w *Workbench) { w.metrics = rec }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workbench) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New builds a Workbench from cfg. Teams come from cfg.TeamsFile when set,
// otherwise the built-in teams are used.
func New(cfg *config.Config, opts ...Option) (*Workbench, error) {
	if cfg == nil {
		return nil, errors.New("workbench: config is nil")
	}
	w := &Workbench{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}

	if w.teams == nil {
		if cfg.TeamsFile != "" {
			teams, err := scholar.LoadTeamsFile(cfg.TeamsFile)
			if err != nil {
				return nil, err
			}
			w.teams = teams
		} else {
			w.teams = scholar.DefaultTeams()
		}
	}
	if w.tools == nil {
		w.tools = NewToolbox(cfg.Search)
	}
	if w.metrics != nil {
		instrumented := make(scholar.Toolbox, len(w.tools))
		for _, c := range w.tools {
			instrumented.Add(w.metrics.Instrument(c))
		}
		w.tools = instrumented
	}
	if w.fetcher == nil {
		if cfg.Search.AllowPrivateFetch {
			w.fetcher = fetch.NewHTTPWithClient(&http.Client{Timeout: cfg.Search.Timeout})
		} else {
			w.fetcher = fetch.NewPublicHTTP(cfg.Search.Timeout)
		}
	}
	if w.newModel == nil {
		w.newModel = w.openAIModel
	}
	if err := scholar.ValidateTeams(w.teams, w.tools); err != nil {
		return nil, fmt.Errorf("workbench: %w", err)
	}

	w.agentOpts = []scholar.Option{
		scholar.WithMaxIterations(cfg.Agent.MaxIterations),
		scholar.WithSearchCost(cfg.Search.Cost),
		scholar.WithLogger(w.logger),
	}
	return w, nil
}

// NewToolbox builds the arxiv, wikipedia and web capabilities for cfg.
func NewToolbox(cfg config.SearchConfig) scholar.Toolbox {
	client := &http.Client{Timeout: cfg.Timeout}

	var web scholar.SearchProvider
	switch strings.ToLower(cfg.Web) {
	case config.WebBrave:
		web = search.NewBraveWithClient(cfg.BraveAPIKey, client)
	case config.WebTavily:
		web = search.NewTavilyWithClient(cfg.TavilyAPIKey, cfg.TavilyDepth, client)
	default:
		web = search.NewDuckDuckGoWithClient(client)
	}

	tools := scholar.Toolbox{}
	tools.Add(scholar.Capability{
		Name:        scholar.CapabilityArxiv,
		Description: "Academic paper index. Returns titles, authors, dates, abstracts and links of research papers.",
		Provider:    search.NewArxivWithClient(client),
	})
	tools.Add(scholar.Capability{
		Name:        scholar.CapabilityWikipedia,
		Description: "Encyclopedia articles for background on methods, models and terms.",
		Provider:    search.NewWikipediaWithClient(client),
	})
	tools.Add(scholar.Capability{
		Name:        scholar.CapabilityWeb,
		Description: "General web search for recent information and insights.",
		Provider:    web,
	})
	return tools
}

// Teams returns the configured team records.
func (w *Workbench) Teams() []scholar.TeamConfig {
	return append([]scholar.TeamConfig(nil), w.teams...)
}

// Toolbox returns the shared capabilities.
func (w *Workbench) Toolbox() scholar.Toolbox { return w.tools }

// Run validates the session credential, assembles the team router for the
// session and routes req.
func (w *Workbench) Run(ctx context.Context, session Session, req scholar.Request) (scholar.Response, error) {
	session.APIKey = strings.TrimSpace(session.APIKey)
	session.Model = strings.TrimSpace(session.Model)
	if session.APIKey == "" {
		session.APIKey = w.cfg.LLM.APIKey
	}
	if session.APIKey == "" && llm.RequiresKey(w.cfg.LLM.Provider) {
		return scholar.Response{}, ErrMissingCredential
	}

	meter := &meteredModels{}
	router, err := scholar.NewTeamRouter(w.teams, w.tools, w.fetcher,
		func(teamModel string) (scholar.LLMProvider, error) {
			m, err := w.newModel(session, teamModel)
			if err != nil {
				return nil, err
			}
			return meter.wrap(m), nil
		},
		w.agentOpts,
		scholar.WithRouterLogger(w.logger),
	)
	if err != nil {
		return scholar.Response{}, err
	}

	var done func(string)
	if w.metrics != nil {
		done = w.metrics.TaskStarted(req.Task)
	}
	log := w.logger.With(zap.String("task", string(req.Task)))

	resp, err := router.Route(ctx, req)
	outcome := metrics.OutcomeCompleted
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		log.Error("request failed", zap.Error(err))
	case resp.Guidance:
		outcome = metrics.OutcomeGuidance
		log.Info("request needs more input", zap.String("guidance", resp.Content))
	default:
		log.Info("request completed", zap.Float64("cost", meter.total()), zap.Int("content_len", len(resp.Content)))
	}
	if w.metrics != nil {
		done(outcome)
		w.metrics.AddCost(req.Task, meter.total())
	}
	return resp, err
}

func (w *Workbench) openAIModel(session Session, teamModel string) (scholar.LLMProvider, error) {
	model := session.Model
	if model == "" {
		model = teamModel
	}
	if model == "" {
		model = w.cfg.LLM.Model
	}
	m, err := llm.NewOpenAI(llm.Config{
		Provider:    w.cfg.LLM.Provider,
		Model:       model,
		APIKey:      session.APIKey,
		BaseURL:     w.cfg.LLM.BaseURL,
		MaxTokens:   w.cfg.LLM.MaxTokens,
		Temperature: float32(w.cfg.LLM.Temperature),
		Timeout:     w.cfg.LLM.Timeout,
	}, w.logger)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, ErrMissingCredential
		}
		return nil, err
	}
	return m, nil
}

// meteredModels sums the cost reported by every model of one run.
type meteredModels struct {
	mu   sync.Mutex
	cost float64
}

func (m *meteredModels) wrap(next scholar.LLMProvider) scholar.LLMProvider {
	return &meteredModel{next: next, meter: m}
}

func (m *meteredModels) add(c float64) {
	m.mu.Lock()
	m.cost += c
	m.mu.Unlock()
}

func (m *meteredModels) total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

type meteredModel struct {
	next  scholar.LLMProvider
	meter *meteredModels
}

func (m *meteredModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (scholar.LLMResponse, error) {
	resp, err := m.next.Generate(ctx, systemPrompt, userPrompt)
	m.meter.add(resp.Cost)
	return resp, err
}
