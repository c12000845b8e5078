// Package grants holds the extracted grant records and their CSV form.
package grants

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/grantscout/internal/llmutil"
)

// ErrInvalidLink marks a record whose link is not an absolute URL.
var ErrInvalidLink = errors.New("grant link is not a valid absolute URL")

// ErrEmptyResult is returned for a blank agent result.
var ErrEmptyResult = errors.New("empty grant result")

// Record is one grant. Deadline is expected as YYYY-MM-DD but not checked.
type Record struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Funding  string `json:"funding"`
	Deadline string `json:"deadline"`
}

// Batch is the ordered set of grants produced by one extraction run.
type Batch struct {
	Grants []Record `json:"grants"`
}

// Len returns the number of records.
func (b Batch) Len() int { return len(b.Grants) }

// Validate checks every record's link.
func (b Batch) Validate() error {
	for i, g := range b.Grants {
		if err := validateLink(g.URL); err != nil {
			return fmt.Errorf("grant %d (index %d): %w", g.ID, i, err)
		}
	}
	return nil
}

func validateLink(link string) error {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLink, link, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}
	return nil
}

// ParseBatch decodes an agent's final result, a {"grants": [...]} document that
// may be wrapped in a code fence, and validates it.
func ParseBatch(text string) (Batch, error) {
	if strings.TrimSpace(text) == "" {
		return Batch{}, ErrEmptyResult
	}
	b, err := llmutil.ParseJSONResponse[Batch](text)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to parse grant batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Batch{}, err
	}
	return *b, nil
}
