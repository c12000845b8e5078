// internal/browser/page.go
package browser

import (
	"context"
	"time"
)

// Page is the active tab as seen by the action libraries.
type Page interface {
	// URL returns the address of the current document.
	URL(ctx context.Context) (string, error)
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the document body is ready.
	WaitLoad(ctx context.Context) error
	// Press sends one key, with modifiers, down and up.
	Press(ctx context.Context, key Key) error
	// Type sends text one character at a time, pausing delay between characters.
	Type(ctx context.Context, text string, delay time.Duration) error
	// Click clicks the first element matching the CSS selector.
	Click(ctx context.Context, selector string) error
	// Evaluate runs script in the page and decodes its result into res, which may be nil.
	Evaluate(ctx context.Context, script string, res any) error
}

// Clipboard reads the clipboard the browser copies into.
type Clipboard interface {
	Read() (string, error)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
