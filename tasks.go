package scholar

import (
	"bytes"
	"strings"
	"text/template"
)

// Task names a supported user intent.
type Task string

const (
	TaskResearch    Task = "research"
	TaskLiterature  Task = "literature"
	TaskKeyInsights Task = "keyinsights"
)

// Tasks lists the supported tasks in display order.
var Tasks = []Task{TaskResearch, TaskLiterature, TaskKeyInsights}

// ParseTask matches s against the supported tasks, ignoring case.
func ParseTask(s string) (Task, bool) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tasks {
		if t == known {
			return t, true
		}
	}
	return t, false
}

const (
	// DefaultPaperCount is used when a literature request carries no count.
	DefaultPaperCount = 1
	// MaxPaperCount caps the number of papers in a literature review.
	MaxPaperCount = 10
)

var researchTemplate = template.Must(template.New("research").Parse(
	`Please provide at least 5 research papers for the topic: {{.Prompt}}. ` +
		`Also provide the links of the research papers at the end. ` +
		`Do not hallucinate at all: always verify each paper and only list papers that actually exist.`))

var literatureTemplate = template.Must(template.New("literature").Parse(
	`The prompt given is the topic of a literature review. The topic is: {{.Prompt}}.
First find {{.Count}} research papers related to the topic and then give the following details in tabular format with columns:
1. Title in IEEE format, for example (journal paper reference):
[1] A. Author, B. Author, and C. Author, "Title of the paper in double quotation marks," Journal Name in Italics, vol. X, no. Y, pp. xx-xx, Month, Year, doi: [DOI Number].

Example:

[1] J. Smith, R. Brown, and K. Lee, "Deep learning approaches for medical image analysis: A review," IEEE Transactions on Medical Imaging, vol. 39, no. 5, pp. 1234-1245, May 2020, doi: 10.1109/TMI.2020.
2. Methodology: a short description of what the paper is about in 5-7 lines.
3. Pros and cons of the paper.
4. Year in which it was published.
5. Journal in which it was published.

Note:
Never hallucinate or make things up. Always verify before giving the information.`))

var keyInsightsTemplate = template.Must(template.New("keyinsights").Parse(
	`The URL given to you is a research paper link. The URL is: {{.URL}}.
Provide a detailed description of the paper covering:
1. Methodology used.
2. Algorithms or models used.
3. Metric scores, if any (make sure they are legitimate and not made up).
4. Links of the references provided in the paper.
Note:
Never hallucinate or make things up. Always verify before giving the information.`))

// ComposeMessage renders the instruction for req. It reports false when
// req names an unsupported task. Rendering is deterministic.
func ComposeMessage(req Request) (string, bool) {
	var tmpl *template.Template
	switch req.Task {
	case TaskResearch:
		tmpl = researchTemplate
	case TaskLiterature:
		tmpl = literatureTemplate
	case TaskKeyInsights:
		tmpl = keyInsightsTemplate
	default:
		return "", false
	}
	data := struct {
		Prompt string
		URL    string
		Count  int
	}{
		Prompt: strings.TrimSpace(req.Prompt),
		URL:    strings.TrimSpace(req.URL),
		Count:  paperCount(req.Count),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// The templates only reference fields of data.
		panic(err)
	}
	return buf.String(), true
}

// paperCount normalizes a requested count to 1..MaxPaperCount.
func paperCount(n int) int {
	switch {
	case n <= 0:
		return DefaultPaperCount
	case n > MaxPaperCount:
		return MaxPaperCount
	}
	return n
}
