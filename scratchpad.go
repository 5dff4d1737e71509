package scholar

import (
	"fmt"
	"strings"
)

// Scratchpad holds the evolving state of a single run.
type Scratchpad struct {
	Request        string
	CurrentStep    string
	Knowledge      string
	History        []string
	Sources        []SearchResult
	IterationCount int
}

// NewScratchpad initializes a scratchpad for the given request message.
func NewScratchpad(request string) Scratchpad {
	return Scratchpad{Request: strings.TrimSpace(request)}
}

// AppendHistory adds a concise action log entry.
func (s *Scratchpad) AppendHistory(entry string) {
	if entry == "" {
		return
	}
	s.History = append(s.History, entry)
}

// AddSources records results whose URL has not been seen yet.
func (s *Scratchpad) AddSources(results []SearchResult) {
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if u == "" || s.hasSource(u) {
			continue
		}
		s.Sources = append(s.Sources, SearchResult{Title: strings.TrimSpace(r.Title), URL: u})
	}
}

func (s *Scratchpad) hasSource(url string) bool {
	for _, src := range s.Sources {
		if src.URL == url {
			return true
		}
	}
	return false
}

// Snapshot renders the scratchpad state for prompting.
func (s Scratchpad) Snapshot() string {
	var b strings.Builder
	b.WriteString("Request:\n")
	b.WriteString(s.Request)
	b.WriteString("\n\nCurrent Step:\n")
	if s.CurrentStep == "" {
		b.WriteString("(none yet)")
	} else {
		b.WriteString(s.CurrentStep)
	}
	b.WriteString("\n\nKnowledge:\n")
	if strings.TrimSpace(s.Knowledge) == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(s.Knowledge)
	}
	if len(s.History) > 0 {
		b.WriteString("\n\nHistory:\n")
		b.WriteString(strings.Join(s.History, "\n"))
	}
	fmt.Fprintf(&b, "\n\nIteration: %d", s.IterationCount)
	return b.String()
}
