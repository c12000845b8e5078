// internal/agent/result.go
package agent

// ActionResult is what an action hands back to the agent loop.
type ActionResult struct {
	ExtractedContent string `json:"extracted_content,omitempty"`
	// IncludeInMemory marks content the planner should see on later steps.
	IncludeInMemory bool   `json:"include_in_memory"`
	Error           string `json:"error,omitempty"`
	IsDone          bool   `json:"is_done"`
}

// Failed reports whether the action produced an error.
func (r ActionResult) Failed() bool {
	return r.Error != ""
}
