package chat

import (
	"bytes"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/grantscout/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Extraction holds the optional slots pulled out of a free-form grant description.
// An empty field means the model did not find that slot.
type Extraction struct {
	Keyword  string
	Deadline string
}

type extractionPayload struct {
	Keyword  slotValue `json:"keyword"`
	Deadline slotValue `json:"deadline"`
}

// slotValue accepts the shapes models actually return for a slot: a string,
// null, a list of strings, or a bare scalar.
type slotValue string

func (v *slotValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = slotValue(strings.TrimSpace(s))
	case '[':
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				parts = append(parts, s)
			}
		}
		*v = slotValue(strings.Join(parts, ", "))
	case '{':
		return fmt.Errorf("unexpected object for slot value")
	default:
		s := string(data)
		if s == "false" {
			s = ""
		}
		*v = slotValue(s)
	}
	return nil
}

// ParseExtraction decodes a model's answer to the extraction prompt.
func ParseExtraction(text string) (Extraction, error) {
	payload, err := llmutil.ParseJSONResponse[extractionPayload](text)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{
		Keyword:  string(payload.Keyword),
		Deadline: string(payload.Deadline),
	}, nil
}
