package scholar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PlannerAction is the step the planner chose.
type PlannerAction string

const (
	PlannerActionAnswer PlannerAction = "answer"
	PlannerActionSearch PlannerAction = "search"
	PlannerActionFetch  PlannerAction = "fetch"
)

// PlannerDecision is the parsed output of the planner model.
type PlannerDecision struct {
	Action PlannerAction
	Tool   string
	Query  string
	URL    string
}

const plannerSystemPrompt = "You are a focused research planner working for a team of academic research assistants. You must gather evidence with the available tools before answering. Never use internal knowledge alone - every paper, author, year and link must be grounded in tool results. Prefer the academic paper index for papers, the encyclopedia for background and web search for recent insights. If knowledge contains [MISMATCH] or [NEEDS VERIFICATION] markers, search again with more specific queries."

const synthesizerSystemPrompt = "You compress tool findings into a concise, plain-text knowledge state. ONLY include facts that appear in the results provided. Never add information from internal knowledge and never invent papers, authors, venues or links. Keep titles, authors, years, venues and URLs exactly as given. If information is missing, leave a placeholder like [NOT YET SEARCHED]. If results appear to be about a different paper or topic, mark the information as [MISMATCH - NEEDS VERIFICATION]. Always output plain-text notes."

const finalizerSystemPrompt = "You write the final response to the request using only the knowledge state. Follow the output format the request asks for, such as tables or numbered lists. Never hallucinate: if information is insufficient, say so clearly."

func buildPlannerUserPrompt(pad Scratchpad, caps []Capability, canFetch bool, instructions []string) string {
	var b strings.Builder
	b.WriteString("Review the scratchpad and choose an action.\n")
	b.WriteString("IMPORTANT: You must gather evidence before answering. Do NOT answer using internal knowledge.\n")
	b.WriteString("IMPORTANT: Output ONLY the action line(s). Do NOT write the actual answer here.\n\n")
	writeInstructions(&b, instructions)
	b.WriteString("Available tools:\n")
	for _, c := range caps {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	if canFetch {
		b.WriteString("- fetch: read the full text of a web page or paper URL\n")
	}
	b.WriteString("\n")
	if strings.TrimSpace(pad.Knowledge) == "" {
		b.WriteString("The knowledge section is empty - you MUST gather evidence first.\n")
	} else {
		b.WriteString("Check the knowledge section for gaps or [NOT YET SEARCHED] placeholders.\n")
		b.WriteString("If ALL required information is grounded in tool results, output exactly: Action: Answer\n")
	}
	b.WriteString("To search, output exactly:\nAction: Search\nTool: <tool name>\nQuery: <your search query>\n")
	if canFetch {
		b.WriteString("To read a page, output exactly:\nAction: Fetch\nURL: <url>\n")
	}
	b.WriteString("\nScratchpad:\n")
	b.WriteString(pad.Snapshot())
	return b.String()
}

func buildSynthesizerUserPrompt(pad Scratchpad, source string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString("Request:\n")
	b.WriteString(pad.Request)
	b.WriteString("\n\nExisting Knowledge:\n")
	if strings.TrimSpace(pad.Knowledge) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(pad.Knowledge)
		b.WriteString("\n")
	}
	b.WriteString("\nNew Tool Call:\n")
	b.WriteString(source)
	b.WriteString("\n\nNew Results (title | url | snippet):\n")
	if len(results) == 0 {
		b.WriteString("(no results returned)\n")
	}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s | %s | %s\n", i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.URL), strings.TrimSpace(r.Snippet))
	}
	b.WriteString("\nTask: Update the knowledge section with concise, relevant facts in PLAIN TEXT. Keep paper titles, authors, years, venues and links. Remove noise and duplication. Respond with only the updated knowledge text.")
	return b.String()
}

func buildFinalizerUserPrompt(pad Scratchpad, instructions []string) string {
	var b strings.Builder
	writeInstructions(&b, instructions)
	b.WriteString("Request:\n")
	b.WriteString(pad.Request)
	b.WriteString("\n\nKnowledge:\n")
	if strings.TrimSpace(pad.Knowledge) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(pad.Knowledge)
		b.WriteString("\n")
	}
	if len(pad.Sources) > 0 {
		b.WriteString("\nSources seen:\n")
		for _, s := range pad.Sources {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Title, s.URL)
		}
	}
	b.WriteString("\nWrite the response. If the knowledge is insufficient, say 'I could not find enough verified information yet.'")
	return b.String()
}

func writeInstructions(b *strings.Builder, instructions []string) {
	if len(instructions) == 0 {
		return
	}
	b.WriteString("Team instructions:\n")
	for _, in := range instructions {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(in))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

var (
	queryRegex = regexp.MustCompile(`(?i)query\s*[:\-]\s*(.+)`)
	toolRegex  = regexp.MustCompile(`(?i)tool\s*[:\-]\s*([\w.\-]+)`)
	urlRegex   = regexp.MustCompile(`(?i)url\s*[:\-]\s*(\S+)`)
	bareURL    = regexp.MustCompile(`https?://\S+`)
	thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// StripThinkBlocks removes <think>...</think> blocks from LLM responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// getContent extracts usable text from an LLM response. It strips <think>
// blocks from Text first. If Text is empty (e.g. thinking models that put
// everything in reasoning tokens), falls back to the Reasoning field.
func getContent(resp LLMResponse) (string, bool) {
	text := StripThinkBlocks(resp.Text)
	if strings.TrimSpace(text) != "" {
		return text, false
	}
	if strings.TrimSpace(resp.Reasoning) != "" {
		return StripThinkBlocks(resp.Reasoning), true
	}
	return "", false
}

// parsePlannerDecision attempts to read the planner output.
func parsePlannerDecision(raw string) (PlannerDecision, error) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	if strings.Contains(lower, "action: answer") || strings.HasPrefix(lower, "answer") {
		return PlannerDecision{Action: PlannerActionAnswer}, nil
	}

	// Small models sometimes skip the action format and emit the answer.
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return PlannerDecision{Action: PlannerActionAnswer}, nil
	}

	if strings.Contains(lower, "action: fetch") || strings.HasPrefix(lower, "fetch") {
		u := extractURL(trimmed)
		if u == "" {
			return PlannerDecision{}, errors.New("planner requested fetch but no url was found")
		}
		return PlannerDecision{Action: PlannerActionFetch, URL: u}, nil
	}

	if strings.Contains(lower, "search") {
		query := extractQuery(trimmed)
		if query == "" {
			return PlannerDecision{}, errors.New("planner requested search but no query was found")
		}
		var tool string
		if m := toolRegex.FindStringSubmatch(trimmed); len(m) == 2 {
			tool = strings.ToLower(m[1])
		}
		return PlannerDecision{Action: PlannerActionSearch, Tool: tool, Query: query}, nil
	}

	return PlannerDecision{}, fmt.Errorf("unable to parse planner output: %q", raw)
}

func extractURL(raw string) string {
	if m := urlRegex.FindStringSubmatch(raw); len(m) == 2 {
		return strings.Trim(m[1], "<>\"'")
	}
	return strings.Trim(bareURL.FindString(raw), "<>\"'")
}

func extractQuery(raw string) string {
	if m := queryRegex.FindStringSubmatch(raw); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}

	lines := strings.Split(raw, "\n")
	for _, line := range lines {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(l, "search") {
			return strings.TrimSpace(strings.TrimSpace(line)[len("search"):])
		}
	}

	if idx := strings.Index(strings.ToLower(raw), "search"); idx >= 0 {
		tail := strings.TrimSpace(raw[idx+len("search"):])
		if tail != "" {
			return tail
		}
	}
	return ""
}
