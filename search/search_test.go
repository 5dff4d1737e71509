package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func unlimited() *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) }

const arxivFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on complex recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <published>2018-10-11T00:50:01Z</published>
    <title>BERT</title>
    <summary>Pre-training of deep bidirectional transformers.</summary>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFixture))
	}))
	defer srv.Close()

	a := NewArxivWithClient(srv.Client())
	a.Endpoint = srv.URL
	a.limiter = unlimited()

	results, err := a.Search(context.Background(), "attention transformers")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "all:attention transformers", gotQuery)
	assert.Equal(t, "Attention Is All You Need", results[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v7", results[0].URL)
	assert.Contains(t, results[0].Snippet, "Authors: Ashish Vaswani, Noam Shazeer")
	assert.Contains(t, results[0].Snippet, "Published: 2017-06-12")
	assert.Contains(t, results[0].Snippet, "Journal: NeurIPS 2017")
	assert.Contains(t, results[0].Snippet, "DOI: 10.48550/arXiv.1706.03762")
	assert.Contains(t, results[0].Snippet, "PDF: http://arxiv.org/pdf/1706.03762v7")
	assert.Contains(t, results[0].Snippet, "Abstract: The dominant sequence")
}

func TestArxivSkipsErrorEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>http://arxiv.org/api/errors</id><title>Error</title><summary>malformed query</summary></entry></feed>`))
	}))
	defer srv.Close()

	a := NewArxivWithClient(srv.Client())
	a.Endpoint = srv.URL
	a.limiter = unlimited()

	results, err := a.Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestArxivEmptyQuery(t *testing.T) {
	_, err := NewArxiv().Search(context.Background(), "  ")
	assert.Error(t, err)
}

func TestWikipediaSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "search", r.URL.Query().Get("list"))
		assert.Equal(t, "transformer model", r.URL.Query().Get("srsearch"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]any{
				"search": []map[string]any{
					{"title": "Transformer (deep learning architecture)", "snippet": `A <span class="searchmatch">transformer</span> is a deep learning &amp; architecture`},
				},
			},
		})
	}))
	defer srv.Close()

	w := NewWikipediaWithClient(srv.Client())
	w.BaseURL = srv.URL

	results, err := w.Search(context.Background(), "transformer model")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Transformer (deep learning architecture)", results[0].Title)
	assert.True(t, strings.HasPrefix(results[0].URL, srv.URL+"/wiki/Transformer_"))
	assert.Equal(t, "A transformer is a deep learning & architecture", results[0].Snippet)
}

func TestParseDuckDuckGoLite(t *testing.T) {
	page := `<html><body><table>
<tr><td><a rel="nofollow" href="https://example.com/a" class='result-link'>First &amp; Best</a></td></tr>
<tr><td class='result-snippet'>Snippet <b>one</b></td></tr>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fb&amp;rut=x" class='result-link'>Second</a></td></tr>
<tr><td class='result-snippet'>Snippet two</td></tr>
</table></body></html>`

	results, err := parseDuckDuckGo(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "First & Best", results[0].Title)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "Snippet one", results[0].Snippet)
	assert.Equal(t, "https://example.org/b", results[1].URL)
}

func TestParseDuckDuckGoHTMLLayout(t *testing.T) {
	page := `<div class="result"><a class="result__a" href="/l/?uddg=https%3A%2F%2Fgo.dev">Go</a><a class="result__snippet">The Go language</a></div>`

	results, err := parseDuckDuckGo(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, "The Go language", results[0].Snippet)
}

func TestDuckDuckGoRetriesOn429(t *testing.T) {
	initialBackoff = time.Millisecond
	defer func() { initialBackoff = time.Second }()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "golang", r.PostForm.Get("q"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`<a class="result-link" href="https://go.dev">Go</a><td class="result-snippet">lang</td>`))
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(srv.Client())
	d.Endpoint = srv.URL
	d.limiter = unlimited()

	results, err := d.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
}

func TestDuckDuckGoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(srv.Client())
	d.Endpoint = srv.URL
	d.limiter = unlimited()

	_, err := d.Search(context.Background(), "q")
	assert.EqualError(t, err, "duckduckgo http 500")
}

func TestBackoffHonoursContext(t *testing.T) {
	initialBackoff = time.Hour
	defer func() { initialBackoff = time.Second }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w := NewWikipediaWithClient(srv.Client())
	w.BaseURL = srv.URL
	_, err := w.Search(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "llm agents", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"T","url":"https://t.example","description":"<strong>LLM</strong> agents"}]}}`))
	}))
	defer srv.Close()

	b := NewBraveWithClient("key", srv.Client())
	b.Endpoint = srv.URL
	b.limiter = unlimited()

	results, err := b.Search(context.Background(), "llm agents")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "LLM agents", results[0].Snippet)
}

func TestBraveMissingKey(t *testing.T) {
	_, err := NewBrave("").Search(context.Background(), "q")
	assert.EqualError(t, err, "brave: API key is missing")
}

func TestBraveRetryDelay(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Second, braveRetryDelay(h))
	h.Set("X-RateLimit-Reset", "3, 1419704")
	assert.Equal(t, 3*time.Second, braveRetryDelay(h))
	h.Set("X-RateLimit-Reset", "junk")
	assert.Equal(t, time.Second, braveRetryDelay(h))
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "advanced", body["search_depth"])
		assert.Equal(t, "k", body["api_key"])
		_, _ = w.Write([]byte(`{"results":[{"title":"A","url":"https://a","content":"c"}]}`))
	}))
	defer srv.Close()

	tv := NewTavilyWithClient("k", "advanced", srv.Client())
	tv.Endpoint = srv.URL

	results, err := tv.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Snippet)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
}
