package scholar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TeamConfig declares one agent team: which task it serves, which
// capabilities it may call and the standing instructions it follows.
type TeamConfig struct {
	Name          string   `yaml:"name"`
	Task          Task     `yaml:"task"`
	Description   string   `yaml:"description,omitempty"`
	Model         string   `yaml:"model,omitempty"`
	Capabilities  []string `yaml:"capabilities"`
	Instructions  []string `yaml:"instructions,omitempty"`
	Fetch         bool     `yaml:"fetch,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`
}

type teamsFile struct {
	Teams []TeamConfig `yaml:"teams"`
}

// DefaultTeams returns the built-in paper, literature and key-insights teams.
func DefaultTeams() []TeamConfig {
	return []TeamConfig{
		{
			Name:         "paper",
			Task:         TaskResearch,
			Description:  "Finds research papers for a topic.",
			Capabilities: []string{CapabilityArxiv, CapabilityWikipedia},
			Instructions: []string{
				"Search for research papers on arXiv.",
				"Retrieve additional details from Wikipedia.",
			},
		},
		{
			Name:         "literature",
			Task:         TaskLiterature,
			Description:  "Writes a tabular literature review.",
			Capabilities: []string{CapabilityArxiv},
			Instructions: []string{
				"Search for research papers on arXiv.",
				"Create a structured summary table.",
			},
		},
		{
			Name:         "keyinsights",
			Task:         TaskKeyInsights,
			Description:  "Extracts key insights from a paper URL.",
			Capabilities: []string{CapabilityArxiv, CapabilityWikipedia, CapabilityWeb},
			Instructions: []string{
				"Retrieve relevant research papers from arXiv.",
				"Extract key information from Wikipedia.",
				"Find latest insights via web search.",
			},
			Fetch: true,
		},
	}
}

// LoadTeams decodes a YAML document with a top-level "teams" list.
func LoadTeams(r io.Reader) ([]TeamConfig, error) {
	var f teamsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("teams file is empty")
		}
		return nil, fmt.Errorf("decode teams: %w", err)
	}
	for i := range f.Teams {
		f.Teams[i].Task = Task(strings.ToLower(strings.TrimSpace(string(f.Teams[i].Task))))
	}
	return f.Teams, nil
}

// LoadTeamsFile reads team records from a YAML file.
func LoadTeamsFile(path string) ([]TeamConfig, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open teams file: %w", err)
	}
	defer fh.Close()
	return LoadTeams(fh)
}

// ValidateTeams checks that every team serves a known task, at most one
// team serves each task and that all named capabilities exist in known.
func ValidateTeams(teams []TeamConfig, known Toolbox) error {
	seen := make(map[Task]string, len(teams))
	for _, t := range teams {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New("team name is empty")
		}
		if _, ok := ParseTask(string(t.Task)); !ok {
			return fmt.Errorf("team %s: unknown task %q", t.Name, t.Task)
		}
		if other, dup := seen[t.Task]; dup {
			return fmt.Errorf("team %s: task %s is already served by team %s", t.Name, t.Task, other)
		}
		seen[t.Task] = t.Name
		if len(t.Capabilities) == 0 {
			return fmt.Errorf("team %s: no capabilities", t.Name)
		}
		for _, c := range t.Capabilities {
			if _, ok := known.Lookup(c); !ok {
				return fmt.Errorf("team %s: unknown capability %q", t.Name, c)
			}
		}
	}
	return nil
}

// Build assembles an Agent for the team from the shared toolbox. Extra
// options are applied after the team's own settings.
func (t TeamConfig) Build(tools Toolbox, fetcher FetchProvider, model LLMProvider, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, fmt.Errorf("team %s: model is not configured", t.Name)
	}
	base := []Option{
		WithName(t.Name),
		WithModel(model),
		WithInstructions(t.Instructions...),
		WithMaxIterations(t.MaxIterations),
	}
	for _, name := range t.Capabilities {
		c, ok := tools.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("team %s: unknown capability %q", t.Name, name)
		}
		base = append(base, WithCapability(c))
	}
	if t.Fetch && fetcher != nil {
		base = append(base, WithFetchProvider(fetcher))
	}
	return New(append(base, opts...)...), nil
}

// ModelFunc returns the model a team should use. It receives the team's
// Model field, which may be empty.
type ModelFunc func(model string) (LLMProvider, error)

// NewTeamRouter builds one agent per team and a Router over them.
func NewTeamRouter(teams []TeamConfig, tools Toolbox, fetcher FetchProvider, models ModelFunc, agentOpts []Option, routerOpts ...RouterOption) (*Router, error) {
	if err := ValidateTeams(teams, tools); err != nil {
		return nil, err
	}
	runners := make(map[Task]Runner, len(teams))
	for _, t := range teams {
		model, err := models(t.Model)
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", t.Name, err)
		}
		agent, err := t.Build(tools, fetcher, model, agentOpts...)
		if err != nil {
			return nil, err
		}
		runners[t.Task] = agent
	}
	return NewRouter(runners, routerOpts...), nil
}
