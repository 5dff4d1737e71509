package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/scholar"
	"github.com/smhanov/scholar/internal/config"
	"github.com/smhanov/scholar/internal/workbench"
)

type fakeAssistant struct {
	resp     scholar.Response
	err      error
	sessions []workbench.Session
	requests []scholar.Request
}

func (f *fakeAssistant) Run(_ context.Context, s workbench.Session, req scholar.Request) (scholar.Response, error) {
	f.sessions = append(f.sessions, s)
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func newTestServer(a Assistant, opts ...Option) http.Handler {
	return New(config.ServerConfig{Address: ":0"}, a, opts...).Handler()
}

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	h := newTestServer(&fakeAssistant{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="research" selected>Research</option>`)
	assert.Contains(t, body, `<option value="keyinsights">Keyinsights</option>`)
	assert.Contains(t, body, `min="1" max="10" value="1"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRunFormRendersMarkdown(t *testing.T) {
	a := &fakeAssistant{resp: scholar.Response{Content: "| Title | Year |\n|---|---|\n| Attention | 2017 |\n\n<script>alert(1)</script>", Status: scholar.StatusCompleted}}
	h := newTestServer(a)

	rec := postForm(h, url.Values{
		"api_key": {"sk-secret"},
		"task":    {"Literature"},
		"prompt":  {"transformers"},
		"count":   {"3"},
		"model":   {"gpt-4o"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "<td>Attention</td>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.NotContains(t, body, "sk-secret")
	assert.Contains(t, body, `value="transformers"`)
	assert.Contains(t, body, `<option value="literature" selected>`)

	require.Len(t, a.requests, 1)
	assert.Equal(t, scholar.Request{Task: scholar.TaskLiterature, Prompt: "transformers", Count: 3}, a.requests[0])
	assert.Equal(t, workbench.Session{APIKey: "sk-secret", Model: "gpt-4o"}, a.sessions[0])
}

func TestRunFormMessages(t *testing.T) {
	tests := []struct {
		name string
		a    *fakeAssistant
		code int
		want string
	}{
		{"missing credential", &fakeAssistant{err: workbench.ErrMissingCredential}, http.StatusOK, workbench.MsgMissingCredential},
		{"guidance", &fakeAssistant{resp: scholar.Response{Content: scholar.MsgProvideTopic, Status: scholar.StatusCompleted, Guidance: true}}, http.StatusOK, scholar.MsgProvideTopic},
		{"agent error", &fakeAssistant{err: errors.New("upstream timeout")}, http.StatusBadGateway, "The request failed: upstream timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postForm(newTestServer(tc.a), url.Values{"task": {"research"}, "count": {"abc"}})
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Equal(t, 0, tc.a.requests[0].Count)
		})
	}
}

func TestRunAPI(t *testing.T) {
	a := &fakeAssistant{resp: scholar.Response{Content: "insights", Status: scholar.StatusCompleted}}
	h := newTestServer(a)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(`{"task":"keyinsights","url":"https://arxiv.org/abs/1706.03762"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sk-header")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"insights","status":"completed"}`, rec.Body.String())
	assert.Equal(t, "sk-header", a.sessions[0].APIKey)
	assert.Equal(t, scholar.TaskKeyInsights, a.requests[0].Task)
}

func TestRunAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		a    *fakeAssistant
		body string
		code int
	}{
		{"missing credential", &fakeAssistant{err: workbench.ErrMissingCredential}, `{"task":"research","prompt":"x"}`, http.StatusUnauthorized},
		{"agent error", &fakeAssistant{err: errors.New("boom")}, `{"task":"research","prompt":"x"}`, http.StatusBadGateway},
		{"bad body", &fakeAssistant{}, `{"task":`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestServer(tc.a).ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("scholar_up 1\n"))
	})
	h := newTestServer(&fakeAssistant{}, WithMetricsHandler(metrics))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "scholar_up 1\n", rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
