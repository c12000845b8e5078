// internal/agent/secrets.go
package agent

import (
	"regexp"
	"sort"
	"strings"
)

var secretTag = regexp.MustCompile(`<secret>([A-Za-z0-9_\-]+)</secret>`)

// Secrets maps placeholder names to sensitive values. Actions may reference a
// value as <secret>name</secret>; the model only ever sees the placeholder.
type Secrets map[string]string

// Substitute replaces placeholders in every string parameter. Unknown names are left as-is.
func (s Secrets) Substitute(params Params) Params {
	if len(s) == 0 || len(params) == 0 {
		return params
	}
	out := params.clone()
	for k, v := range out {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[k] = secretTag.ReplaceAllStringFunc(str, func(tag string) string {
			name := secretTag.FindStringSubmatch(tag)[1]
			if val, ok := s[name]; ok {
				return val
			}
			return tag
		})
	}
	return out
}

// Redact replaces every known secret value in text with its placeholder.
// Longer values are replaced first so a secret containing another is not split.
func (s Secrets) Redact(text string) string {
	if len(s) == 0 || text == "" {
		return text
	}
	names := make([]string, 0, len(s))
	for name, val := range s {
		if val != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return len(s[names[i]]) > len(s[names[j]])
	})
	for _, name := range names {
		text = strings.ReplaceAll(text, s[name], "<secret>"+name+"</secret>")
	}
	return text
}
