package search

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResults caps how many results any provider returns.
const maxResults = 5

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Backoff bounds for HTTP 429 retries. Tests shrink initialBackoff.
var (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// retryHint reads a server-suggested delay from a 429 response. Zero means
// no hint.
type retryHint func(http.Header) time.Duration

// doWithBackoff waits on limiter, sends the request built by newReq and
// retries on 429 with a doubling delay up to maxBackoff. A server hint
// longer than the current delay wins. The caller closes the response body.
func doWithBackoff(ctx context.Context, client *http.Client, limiter *rate.Limiter, newReq func() (*http.Request, error), hint retryHint) (*http.Response, error) {
	delay := initialBackoff
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		wait := delay
		if hint == nil {
			hint = retryAfter
		}
		if h := hint(resp.Header); h > wait {
			wait = h
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if delay < maxBackoff {
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}
	}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// collapseSpace joins runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes, adding an ellipsis when it does.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
