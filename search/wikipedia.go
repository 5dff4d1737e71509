package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/smhanov/scholar"
)

const wikipediaUserAgent = "scholar/1.0 (research assistant; https://github.com/smhanov/scholar)"

// Wikipedia searches an encyclopedia through the MediaWiki search API.
type Wikipedia struct {
	// BaseURL is the wiki root, for example https://en.wikipedia.org.
	BaseURL string
	client  *http.Client
}

// NewWikipedia constructs a provider for English Wikipedia.
func NewWikipedia() *Wikipedia {
	return NewWikipediaWithClient(&http.Client{Timeout: 10 * time.Second})
}

// NewWikipediaWithClient constructs a Wikipedia provider using the supplied HTTP client.
func NewWikipediaWithClient(client *http.Client) *Wikipedia {
	return &Wikipedia{BaseURL: "https://en.wikipedia.org", client: client}
}

// Search runs a full-text search and returns article links with snippets.
func (w *Wikipedia) Search(ctx context.Context, query string) ([]scholar.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("wikipedia: query is empty")
	}
	base := strings.TrimRight(w.BaseURL, "/")

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(maxResults))
	params.Set("format", "json")
	params.Set("utf8", "1")
	endpoint := base + "/w/api.php?" + params.Encode()

	resp, err := doWithBackoff(ctx, w.client, nil, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", wikipediaUserAgent)
		return req, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia http %d", resp.StatusCode)
	}

	var payload struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("wikipedia: decode: %w", err)
	}

	results := make([]scholar.SearchResult, 0, len(payload.Query.Search))
	for _, r := range payload.Query.Search {
		results = append(results, scholar.SearchResult{
			Title:   r.Title,
			URL:     base + "/wiki/" + url.PathEscape(strings.ReplaceAll(r.Title, " ", "_")),
			Snippet: htmlText(r.Snippet),
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// htmlText returns the text content of an HTML fragment.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}
