package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/smhanov/scholar"
)

const ddgEndpoint = "https://lite.duckduckgo.com/lite/"

// ddgLimiter enforces 1 query per second across all DuckDuckGo instances.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGo implements a searcher using DuckDuckGo's HTML lite interface.
type DuckDuckGo struct {
	// Endpoint overrides the lite search URL.
	Endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{Endpoint: ddgEndpoint, client: client, limiter: ddgLimiter}
}

// Search posts the query to the lite page and scrapes the results.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]scholar.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}

	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", "us-en")
	body := form.Encode()

	resp, err := doWithBackoff(ctx, d.client, d.limiter, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}
	return parseDuckDuckGo(resp.Body)
}

// parseDuckDuckGo extracts results from either the lite page (result-link
// anchors with result-snippet cells) or the html page (.result blocks).
func parseDuckDuckGo(r io.Reader) ([]scholar.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}

	var results []scholar.SearchResult
	snippets := doc.Find("td.result-snippet")
	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		title := collapseSpace(s.Text())
		if href == "" || title == "" {
			return true
		}
		var snippet string
		if i < snippets.Length() {
			snippet = collapseSpace(snippets.Eq(i).Text())
		}
		results = append(results, scholar.SearchResult{Title: title, URL: resolveDDGURL(href), Snippet: snippet})
		return len(results) < maxResults
	})
	if len(results) > 0 {
		return results, nil
	}

	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		href, _ := link.Attr("href")
		title := collapseSpace(link.Text())
		if href == "" || title == "" {
			return true
		}
		results = append(results, scholar.SearchResult{
			Title:   title,
			URL:     resolveDDGURL(href),
			Snippet: collapseSpace(s.Find(".result__snippet").Text()),
		})
		return len(results) < maxResults
	})
	return results, nil
}

// resolveDDGURL unwraps DuckDuckGo redirect links such as
// //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com.
func resolveDDGURL(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasPrefix(u.Path, "/l/") {
		return target
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return "https://duckduckgo.com" + href
	}
	return href
}
