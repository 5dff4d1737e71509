package search

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/smhanov/scholar"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// arXiv asks API clients to wait three seconds between calls.
var arxivLimiter = rate.NewLimiter(rate.Every(3*time.Second), 1)

const arxivSummaryLen = 600

// Arxiv searches the arXiv paper index through its Atom API.
type Arxiv struct {
	// Endpoint overrides the query URL.
	Endpoint string
	// MaxResults caps the number of entries requested (at most 5).
	MaxResults int
	client     *http.Client
	limiter    *rate.Limiter
}

// NewArxiv constructs an arXiv search provider.
func NewArxiv() *Arxiv {
	return NewArxivWithClient(&http.Client{Timeout: 20 * time.Second})
}

// NewArxivWithClient constructs an arXiv provider using the supplied HTTP client.
func NewArxivWithClient(client *http.Client) *Arxiv {
	return &Arxiv{Endpoint: arxivEndpoint, MaxResults: maxResults, client: client, limiter: arxivLimiter}
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string `xml:"id"`
	Title      string `xml:"title"`
	Summary    string `xml:"summary"`
	Published  string `xml:"published"`
	JournalRef string `xml:"journal_ref"`
	DOI        string `xml:"doi"`
	Authors    []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

// Search queries arXiv across all fields.
func (a *Arxiv) Search(ctx context.Context, query string) ([]scholar.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("arxiv: query is empty")
	}
	n := a.MaxResults
	if n <= 0 || n > maxResults {
		n = maxResults
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(n))
	params.Set("sortBy", "relevance")
	endpoint := a.Endpoint + "?" + params.Encode()

	resp, err := doWithBackoff(ctx, a.client, a.limiter, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/atom+xml")
		return req, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv http %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv: decode feed: %w", err)
	}

	results := make([]scholar.SearchResult, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		title := collapseSpace(e.Title)
		// The API reports query errors as a single entry titled "Error".
		if title == "" || title == "Error" {
			continue
		}
		results = append(results, scholar.SearchResult{
			Title:   title,
			URL:     strings.TrimSpace(e.ID),
			Snippet: e.snippet(),
		})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}

// snippet renders the bibliographic details the synthesizer needs.
func (e arxivEntry) snippet() string {
	var parts []string
	if len(e.Authors) > 0 {
		names := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			names = append(names, collapseSpace(au.Name))
		}
		parts = append(parts, "Authors: "+strings.Join(names, ", "))
	}
	if len(e.Published) >= 10 {
		parts = append(parts, "Published: "+e.Published[:10])
	}
	if j := collapseSpace(e.JournalRef); j != "" {
		parts = append(parts, "Journal: "+j)
	}
	if d := strings.TrimSpace(e.DOI); d != "" {
		parts = append(parts, "DOI: "+d)
	}
	for _, l := range e.Links {
		if l.Title == "pdf" {
			parts = append(parts, "PDF: "+l.Href)
			break
		}
	}
	if s := collapseSpace(e.Summary); s != "" {
		parts = append(parts, "Abstract: "+truncate(s, arxivSummaryLen))
	}
	return strings.Join(parts, ". ")
}
