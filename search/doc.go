// Package search provides the capabilities scholar agents call.
//
// Available providers:
//
//   - Arxiv: academic paper index, free, one request per three seconds
//   - Wikipedia: encyclopedia lookup through the MediaWiki search API
//   - DuckDuckGo: web search, no API key required (scrapes lite.duckduckgo.com)
//   - Brave: web search, requires an API key via X-Subscription-Token
//   - Tavily: web search, requires an API key, supports basic/advanced depth
//
// Every provider retries HTTP 429 with a doubling backoff and returns at
// most five results.
//
//	papers := search.NewArxiv()
//	results, err := papers.Search(ctx, "graph neural networks")
//
// Implement scholar.SearchProvider to add your own backend.
package search
