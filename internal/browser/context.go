// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext returns a context that carries ctx1's values (the chromedp
// target) and is cancelled when either ctx1 or ctx2 is done.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(ctx1)
	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }

func (valueOnlyContext) Done() <-chan struct{} { return nil }

func (valueOnlyContext) Err() error { return nil }

// Detach returns a context with ctx's values that is never cancelled.
// Cleanup keystrokes use it so they still reach the tab after the caller gave up.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
