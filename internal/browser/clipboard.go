// internal/browser/clipboard.go
package browser

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// SystemClipboard reads the operating system clipboard, which a headful
// Chrome writes to on copy.
type SystemClipboard struct{}

var _ Clipboard = SystemClipboard{}

func (SystemClipboard) Read() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("system clipboard is not available on this host")
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read system clipboard: %w", err)
	}
	return text, nil
}
