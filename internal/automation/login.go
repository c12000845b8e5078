package automation

import (
	"github.com/xkilldash9x/grantscout/internal/agent"
	"github.com/xkilldash9x/grantscout/internal/config"
)

// Placeholder names for the site credentials. The planner only ever sees these.
const (
	SecretUsername = "x_name"
	SecretPassword = "x_password"
)

// Secrets maps the credential placeholders to the configured values.
func Secrets(site config.SiteConfig) agent.Secrets {
	return agent.Secrets{
		SecretUsername: site.Username,
		SecretPassword: site.Password,
	}
}

func secretRef(name string) string {
	return "<secret>" + name + "</secret>"
}

// LoginScript is the fixed sequence that signs into the grants site through the
// institution picker and opens the deadline filter. Element indexes match the
// site's layout as observed by the agent.
func LoginScript(site config.SiteConfig) []agent.InitialAction {
	return []agent.InitialAction{
		{Name: "go_to_url", Params: agent.Params{"url": site.URL}},
		{Name: "click_element", Params: agent.Params{"index": 7}},
		{Name: "send_keys", Params: agent.Params{"keys": site.Institution + "\n"}},
		{Name: "click_element", Params: agent.Params{"index": 8}},
		{Name: "click_element", Params: agent.Params{"index": 0}},
		{Name: "send_keys", Params: agent.Params{"keys": secretRef(SecretUsername)}},
		{Name: "click_element", Params: agent.Params{"index": 1}},
		{Name: "send_keys", Params: agent.Params{"keys": secretRef(SecretPassword)}},
		{Name: "send_keys", Params: agent.Params{"keys": "\n"}},
		{Name: "wait", Params: agent.Params{"seconds": 15}},
		{Name: "click_element", Params: agent.Params{"index": 2}},
		{Name: "wait", Params: agent.Params{"seconds": 10}},
		{Name: "click_element", Params: agent.Params{"index": 10}},
		{Name: "click_element", Params: agent.Params{"index": 14}},
		{Name: "send_keys", Params: agent.Params{"keys": "Deadlines\n"}},
		{Name: "click_element", Params: agent.Params{"index": 15}},
		{Name: "send_keys", Params: agent.Params{"keys": "Greater Than or Equal To\n"}},
	}
}

// ExtractionTask is the second phase's instruction. The result format is the
// grants.Batch JSON document.
const ExtractionTask = `
collect all the ID, Link, Funding, and Deadline for all the grants listed on the page
	Columns:
		A: ID
		B: Link
		C: Funding
		D: Deadline (YYYY-MM-DD)

When you have them all, call done with text set to a JSON object of this exact shape and nothing else:
{"grants": [{"id": 1, "url": "https://...", "funding": "...", "deadline": "YYYY-MM-DD"}]}
Links must be absolute URLs.
`
