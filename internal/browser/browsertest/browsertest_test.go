package browsertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/grantscout/internal/browser"
)

func TestPage_RecordsCallsInOrder(t *testing.T) {
	ctx := context.Background()
	p := NewPage("about:blank")
	clip := &Clipboard{Log: p.Log, Text: "a\tb"}

	require.NoError(t, p.Navigate(ctx, "https://example.com"))
	require.NoError(t, p.Press(ctx, browser.KeyEnter))
	require.NoError(t, p.Log.Sleep(ctx, 0))
	got, err := clip.Read()
	require.NoError(t, err)
	assert.Equal(t, "a\tb", got)

	url, err := p.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
	assert.Equal(t, []string{"navigate https://example.com", "press Enter", "sleep 0s", "clipboard read", "url"}, p.Log.Calls())
}

func TestPage_EvaluateDecodesThroughJSON(t *testing.T) {
	p := NewPage("")
	p.EvaluateFunc = func(string) (any, error) {
		return map[string]any{"n": 3}, nil
	}
	var out struct{ N int }
	require.NoError(t, p.Evaluate(context.Background(), "x", &out))
	assert.Equal(t, 3, out.N)
}

func TestLog_Fail(t *testing.T) {
	boom := errors.New("boom")
	p := NewPage("")
	p.Log.Fail = func(call string) error {
		if call == "click #b" {
			return boom
		}
		return nil
	}
	assert.NoError(t, p.Click(context.Background(), "#a"))
	assert.ErrorIs(t, p.Click(context.Background(), "#b"), boom)
}
