package scholar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Guidance texts returned instead of contacting an agent.
const (
	MsgProvideTopic   = "Please provide a topic."
	MsgProvideURL     = "Please provide a valid URL."
	MsgSupportedTasks = "Supported tasks: Research, Literature, Keyinsights."
)

// Status reports how a routed request ended.
type Status string

// StatusCompleted is the only status a Response carries.
const StatusCompleted Status = "completed"

// Request is one user action. Prompt is required for research and
// literature, URL for keyinsights. Count applies to literature only.
type Request struct {
	Task   Task   `json:"task"`
	Prompt string `json:"prompt,omitempty"`
	URL    string `json:"url,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Response is the text shown to the user.
type Response struct {
	Content string `json:"content"`
	Status  Status `json:"status"`
	// Guidance is true when Content is a local validation message and no
	// agent was called.
	Guidance bool `json:"guidance,omitempty"`
}

// ErrNoRunner is returned when a valid task has no runner configured.
var ErrNoRunner = errors.New("no runner configured for task")

// Router validates requests, composes the task instruction and hands it to
// the runner configured for the task.
type Router struct {
	runners map[Task]Runner
	logger  *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the router's logger.
func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter builds a router over the given task runners.
func NewRouter(runners map[Task]Runner, opts ...RouterOption) *Router {
	r := &Router{runners: make(map[Task]Runner, len(runners)), logger: zap.NewNop()}
	for t, run := range runners {
		r.runners[t] = run
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles one request. Missing required fields and unknown tasks
// produce guidance text without an agent call. Agent errors are returned
// unchanged except that a best-effort answer with ErrMaxIterations counts
// as completed.
func (r *Router) Route(ctx context.Context, req Request) (Response, error) {
	prompt := strings.TrimSpace(req.Prompt)
	url := strings.TrimSpace(req.URL)

	var seed string
	switch req.Task {
	case TaskResearch:
		if prompt == "" {
			return guidance(MsgProvideTopic), nil
		}
		seed = prompt
	case TaskLiterature:
		// Only an empty topic together with a non-positive count is rejected.
		if prompt == "" && req.Count <= 0 {
			return guidance(MsgProvideTopic), nil
		}
		seed = prompt
	case TaskKeyInsights:
		if url == "" {
			return guidance(MsgProvideURL), nil
		}
		seed = url
	default:
		return guidance(MsgSupportedTasks), nil
	}

	message, _ := ComposeMessage(req)
	runner, ok := r.runners[req.Task]
	if !ok || runner == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrNoRunner, req.Task)
	}

	r.logger.Debug("routing request",
		zap.String("task", string(req.Task)),
		zap.Int("message_len", len(message)))

	var opts []RunOption
	if seed != "" {
		opts = append(opts, WithSeedQuery(seed))
	}
	res, err := runner.Run(ctx, message, opts...)
	if err != nil {
		if errors.Is(err, ErrMaxIterations) && strings.TrimSpace(res.Content) != "" {
			r.logger.Warn("returning best-effort answer", zap.String("task", string(req.Task)))
			return completed(res.Content), nil
		}
		return Response{}, fmt.Errorf("%s: %w", req.Task, err)
	}
	return completed(res.Content), nil
}

func guidance(text string) Response {
	return Response{Content: text, Status: StatusCompleted, Guidance: true}
}

func completed(text string) Response {
	return Response{Content: text, Status: StatusCompleted}
}
