// Package fetch downloads web pages and reduces them to plain text for
// agents that need more than a search snippet.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxFetchBytes = 32 * 1024 // 32KB limit to avoid overwhelming LLM context

// maxBodyBytes bounds how much of a response is read before parsing.
const maxBodyBytes = 4 << 20

// HTTPFetcher retrieves readable text from a URL.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTP creates a HTTP fetcher with a modest timeout.
func NewHTTP() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

// NewHTTPWithClient creates a fetcher using the supplied HTTP client.
func NewHTTPWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch downloads the URL content, strips HTML to plain text, and truncates.
// Non-HTML text bodies are returned as-is.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "", fmt.Errorf("fetch url must be http or https: %q", trimmed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return "", fmt.Errorf("fetch http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var text string
	ct := resp.Header.Get("Content-Type")
	if ct == "" || strings.Contains(ct, "html") {
		text, err = htmlToText(body)
	} else if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "xml") {
		var raw []byte
		raw, err = io.ReadAll(body)
		text = normalizeLines(string(raw))
	} else {
		return "", fmt.Errorf("fetch: unsupported content type %q", ct)
	}
	if err != nil {
		return "", err
	}

	return truncate(text, maxFetchBytes), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n[TRUNCATED]"
}

// htmlToText drops scripts, styles and page chrome, then returns the
// remaining text one block per line.
func htmlToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("fetch: parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, svg, form").Remove()

	// Break lines at block boundaries so paragraphs stay apart.
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, br, section, article, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return normalizeLines(root.Text()), nil
}

// normalizeLines collapses whitespace within lines and drops blank lines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
