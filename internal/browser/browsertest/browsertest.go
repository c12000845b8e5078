// Package browsertest provides scripted fakes of the browser interfaces for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/grantscout/internal/browser"
)

// Log records calls from a page, its clipboard and the sleep hook in one ordered list.
type Log struct {
	mu    sync.Mutex
	calls []string

	// Fail, when set, is consulted for every call; a non-nil error fails that call.
	Fail func(call string) error
}

func (l *Log) add(format string, args ...any) error {
	call := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.calls = append(l.calls, call)
	fail := l.Fail
	l.mu.Unlock()
	if fail != nil {
		return fail(call)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (l *Log) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Reset forgets recorded calls.
func (l *Log) Reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

// Sleep records "sleep <d>" without waiting. It still honors ctx.
func (l *Log) Sleep(ctx context.Context, d time.Duration) error {
	if err := l.add("sleep %s", d); err != nil {
		return err
	}
	return ctx.Err()
}

// Page is a browser.Page that records its calls.
type Page struct {
	Log *Log

	mu         sync.Mutex
	currentURL string

	// Evaluate answers scripts. Its result is round-tripped through JSON into
	// the caller's destination, as the real page does.
	EvaluateFunc func(script string) (any, error)
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a page at url with a fresh log.
func NewPage(url string) *Page {
	return &Page{Log: &Log{}, currentURL: url}
}

// SetURL moves the page without recording a call.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.currentURL = url
	p.mu.Unlock()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.Log.add("url"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURL, ctx.Err()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.Log.add("navigate %s", url); err != nil {
		return err
	}
	p.SetURL(url)
	return ctx.Err()
}

func (p *Page) WaitLoad(ctx context.Context) error {
	if err := p.Log.add("wait load"); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Page) Press(ctx context.Context, key browser.Key) error {
	if err := p.Log.add("press %s", key); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Page) Type(ctx context.Context, text string, _ time.Duration) error {
	if err := p.Log.add("type %s", text); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.Log.add("click %s", selector); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Page) Evaluate(ctx context.Context, script string, res any) error {
	if err := p.Log.add("evaluate %s", script); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.EvaluateFunc == nil || res == nil {
		return nil
	}
	v, err := p.EvaluateFunc(script)
	if err != nil {
		return err
	}
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(data, res)
}

// Clipboard is a browser.Clipboard backed by a fixed string.
type Clipboard struct {
	Log  *Log
	Text string
}

var _ browser.Clipboard = (*Clipboard)(nil)

func (c *Clipboard) Read() (string, error) {
	if err := c.Log.add("clipboard read"); err != nil {
		return "", err
	}
	return c.Text, nil
}
