// internal/agent/observe.go
package agent

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed js/observe.js
var observeJS string

// IndexAttribute is set by the observe script on each indexed element.
const IndexAttribute = "data-agent-index"

func observeScript(maxElements int) string {
	return fmt.Sprintf("(%s)(%d)", strings.TrimSpace(observeJS), maxElements)
}

// IndexSelector returns the CSS selector for the element observed at index.
func IndexSelector(index int) string {
	return fmt.Sprintf(`[%s="%d"]`, IndexAttribute, index)
}

// Element is one interactive element of an observation.
type Element struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Text  string `json:"text"`
	Href  string `json:"href"`
}

func (e Element) String() string {
	var b strings.Builder
	b.WriteString("<" + e.Tag)
	if e.Type != "" {
		b.WriteString(` type="` + e.Type + `"`)
	}
	if e.Href != "" {
		b.WriteString(` href="` + e.Href + `"`)
	}
	b.WriteString(">")
	b.WriteString(e.Text)
	return b.String()
}

// Observation is a snapshot of the page for the planner.
type Observation struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

func (o Observation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nTitle: %s\nInteractive elements:\n", o.URL, o.Title)
	if len(o.Elements) == 0 {
		b.WriteString("(none)\n")
	}
	for _, e := range o.Elements {
		fmt.Fprintf(&b, "[%d] %s\n", e.Index, e)
	}
	return b.String()
}
