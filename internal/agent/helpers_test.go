package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/grantscout/api/schemas"
	"github.com/xkilldash9x/grantscout/internal/browser/browsertest"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Close() error { return nil }

// requests returns every request the planner sent, in order.
func (m *mockLLM) requests() []schemas.GenerationRequest {
	var out []schemas.GenerationRequest
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(schemas.GenerationRequest))
	}
	return out
}

func (m *mockLLM) reply(text string) {
	m.On("Generate", mock.Anything, mock.Anything).Return(text, nil).Once()
}

var testObservation = Observation{
	URL:   "https://spin.infoedglobal.com/Home/Search",
	Title: "SPIN",
	Elements: []Element{
		{Index: 0, Tag: "input", Type: "text"},
		{Index: 1, Tag: "button", Text: "Search"},
		{Index: 2, Tag: "a", Href: "/Home/Details/1", Text: "Robotics Fund"},
	},
}

// isObserveScript matches the script built by observeScript.
func isObserveScript(script string) bool {
	return strings.HasPrefix(script, "((function (maxElements)")
}

// newTestPage answers the observe script with obs and innerText reads with text.
func newTestPage(obs Observation, text string) *browsertest.Page {
	p := browsertest.NewPage(obs.URL)
	p.EvaluateFunc = func(script string) (any, error) {
		switch {
		case isObserveScript(script):
			return obs, nil
		case strings.Contains(script, "innerText"):
			return text, nil
		}
		return nil, nil
	}
	return p
}

func newTestController(t *testing.T, p *browsertest.Page) *Controller {
	t.Helper()
	return NewController(zaptest.NewLogger(t), WithSleep(p.Log.Sleep))
}
