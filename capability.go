package scholar

import "strings"

// Built-in capability names. Team records refer to capabilities by these.
const (
	CapabilityArxiv     = "arxiv"
	CapabilityWikipedia = "wikipedia"
	CapabilityWeb       = "web"
)

// Capability is a named search function the planner may call.
type Capability struct {
	Name        string
	Description string
	Provider    SearchProvider
}

// Toolbox maps capability names to their implementations.
type Toolbox map[string]Capability

// Add registers c under its lower-cased name.
func (t Toolbox) Add(c Capability) {
	t[normalizeName(c.Name)] = c
}

// Lookup finds a capability by name, ignoring case and surrounding space.
func (t Toolbox) Lookup(name string) (Capability, bool) {
	c, ok := t[normalizeName(name)]
	return c, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
