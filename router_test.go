package scholar_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/scholar"
)

// recordingRunner captures every message it receives.
type recordingRunner struct {
	mu       sync.Mutex
	messages []string
	reply    scholar.Result
	err      error
}

func (r *recordingRunner) Run(_ context.Context, message string, _ ...scholar.RunOption) (scholar.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return r.reply, r.err
}

func (r *recordingRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func newTestRouter() (*scholar.Router, map[scholar.Task]*recordingRunner) {
	runners := map[scholar.Task]*recordingRunner{
		scholar.TaskResearch:    {reply: scholar.Result{Content: "papers"}},
		scholar.TaskLiterature:  {reply: scholar.Result{Content: "table"}},
		scholar.TaskKeyInsights: {reply: scholar.Result{Content: "insights"}},
	}
	m := make(map[scholar.Task]scholar.Runner, len(runners))
	for t, r := range runners {
		m[t] = r
	}
	return scholar.NewRouter(m), runners
}

func TestRouteGuidance(t *testing.T) {
	tests := []struct {
		name string
		req  scholar.Request
		want string
	}{
		{"research without topic", scholar.Request{Task: scholar.TaskResearch, Prompt: "  "}, scholar.MsgProvideTopic},
		{"keyinsights without url", scholar.Request{Task: scholar.TaskKeyInsights}, scholar.MsgProvideURL},
		{"keyinsights with blank url", scholar.Request{Task: scholar.TaskKeyInsights, URL: " \t "}, scholar.MsgProvideURL},
		{"literature with blank topic", scholar.Request{Task: scholar.TaskLiterature, Prompt: "\n", Count: 0}, scholar.MsgProvideTopic},
		{"literature without topic or count", scholar.Request{Task: scholar.TaskLiterature, Count: 0}, scholar.MsgProvideTopic},
		{"unknown task", scholar.Request{Task: "summarize", Prompt: "x"}, scholar.MsgSupportedTasks},
		{"empty task", scholar.Request{}, scholar.MsgSupportedTasks},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, runners := newTestRouter()

			resp, err := router.Route(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Content)
			assert.Equal(t, scholar.StatusCompleted, resp.Status)
			assert.True(t, resp.Guidance)
			for task, r := range runners {
				assert.Zero(t, r.calls(), "runner for %s must not be called", task)
			}
		})
	}
}

func TestRouteResearch(t *testing.T) {
	router, runners := newTestRouter()

	resp, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskResearch, Prompt: "federated learning"})
	require.NoError(t, err)
	assert.Equal(t, scholar.Response{Content: "papers", Status: scholar.StatusCompleted}, resp)

	r := runners[scholar.TaskResearch]
	require.Equal(t, 1, r.calls())
	assert.Contains(t, r.messages[0], "at least 5 research papers for the topic: federated learning")
	assert.Contains(t, r.messages[0], "links")
}

func TestRouteLiteratureTemplate(t *testing.T) {
	router, runners := newTestRouter()

	resp, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskLiterature, Prompt: "graph neural networks", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, "table", resp.Content)

	msg := runners[scholar.TaskLiterature].messages[0]
	assert.Contains(t, msg, "3")
	assert.Contains(t, msg, "First find 3 research papers")
	assert.Contains(t, msg, "graph neural networks")
	assert.Contains(t, msg, "IEEE")
	assert.Contains(t, msg, "Pros and cons")
}

func TestRouteLiteratureGuardUsesAnd(t *testing.T) {
	router, runners := newTestRouter()

	// A count without a topic still reaches the agent.
	_, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskLiterature, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, runners[scholar.TaskLiterature].calls())

	// A topic with a non-positive count uses the default of one paper.
	_, err = router.Route(context.Background(), scholar.Request{Task: scholar.TaskLiterature, Prompt: "robotics", Count: -4})
	require.NoError(t, err)
	assert.Contains(t, runners[scholar.TaskLiterature].messages[1], "First find 1 research papers")
}

func TestRouteLiteratureCountCapped(t *testing.T) {
	router, runners := newTestRouter()

	_, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskLiterature, Prompt: "robotics", Count: 50})
	require.NoError(t, err)
	assert.Contains(t, runners[scholar.TaskLiterature].messages[0], "First find 10 research papers")
}

func TestRouteKeyInsights(t *testing.T) {
	router, runners := newTestRouter()

	resp, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskKeyInsights, URL: " https://arxiv.org/abs/1706.03762 "})
	require.NoError(t, err)
	assert.Equal(t, "insights", resp.Content)

	msg := runners[scholar.TaskKeyInsights].messages[0]
	assert.Contains(t, msg, "The URL is: https://arxiv.org/abs/1706.03762.")
	assert.Contains(t, msg, "Methodology used")
	assert.Contains(t, msg, "Metric scores")
}

func TestRouteIsDeterministic(t *testing.T) {
	router, runners := newTestRouter()
	req := scholar.Request{Task: scholar.TaskLiterature, Prompt: "quantum computing", Count: 4}

	_, err := router.Route(context.Background(), req)
	require.NoError(t, err)
	_, err = router.Route(context.Background(), req)
	require.NoError(t, err)

	r := runners[scholar.TaskLiterature]
	require.Equal(t, 2, r.calls())
	assert.Equal(t, r.messages[0], r.messages[1])
}

func TestRouteAgentErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited upstream")
	router := scholar.NewRouter(map[scholar.Task]scholar.Runner{
		scholar.TaskResearch: &recordingRunner{err: boom},
	})

	_, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskResearch, Prompt: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestRouteBestEffortCountsAsCompleted(t *testing.T) {
	router := scholar.NewRouter(map[scholar.Task]scholar.Runner{
		scholar.TaskResearch: &recordingRunner{reply: scholar.Result{Content: "partial"}, err: scholar.ErrMaxIterations},
	})

	resp, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskResearch, Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "partial", resp.Content)
}

func TestRouteMissingRunner(t *testing.T) {
	router := scholar.NewRouter(nil)

	_, err := router.Route(context.Background(), scholar.Request{Task: scholar.TaskResearch, Prompt: "x"})
	assert.ErrorIs(t, err, scholar.ErrNoRunner)
}

func TestParseTask(t *testing.T) {
	task, ok := scholar.ParseTask(" KeyInsights ")
	assert.True(t, ok)
	assert.Equal(t, scholar.TaskKeyInsights, task)

	_, ok = scholar.ParseTask("summary")
	assert.False(t, ok)
}

func TestComposeMessage(t *testing.T) {
	_, ok := scholar.ComposeMessage(scholar.Request{Task: "other"})
	assert.False(t, ok)

	msg, ok := scholar.ComposeMessage(scholar.Request{Task: scholar.TaskResearch, Prompt: "  topic  "})
	require.True(t, ok)
	assert.True(t, strings.Contains(msg, "topic: topic."))
}
