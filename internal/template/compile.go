package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/runledger/internal/ir"
)

// State is the outcome of Compile.
type State string

const (
	StateNeedsInput State = "needs_input"
	StateReady      State = "ready"
	StateInvalid    State = "invalid"
)

// ReasonMalformedJSON is reported when a bound body is not valid JSON.
const ReasonMalformedJSON = "Malformed JSON after binding placeholders"

// placeholderRe matches {{KEY}}. Keys are trimmed of surrounding whitespace.
var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Result is the outcome of binding a context into a version.
type Result struct {
	State       State    `json:"state"`
	MissingKeys []string `json:"missing_keys"`
	OutputJSON  string   `json:"output_json,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Placeholders returns the distinct placeholder keys in body, sorted.
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		key := strings.TrimSpace(m[1])
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Compile binds ctx into v.
//
// A placeholder whose key is absent, nil or the empty string makes the result
// StateNeedsInput with the sorted missing keys and no output. Otherwise every
// placeholder is replaced by its value escaped as the inside of a JSON string,
// and the bound body is parsed and re-encoded canonically (StateReady). A
// body that is not valid JSON after binding yields StateInvalid.
func Compile(v Version, ctx map[string]any) Result {
	var missing []string
	for _, key := range Placeholders(v.Body) {
		if isMissing(ctx[key]) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Result{State: StateNeedsInput, MissingKeys: missing}
	}

	var bindErr error
	rendered := placeholderRe.ReplaceAllStringFunc(v.Body, func(match string) string {
		key := strings.TrimSpace(placeholderRe.FindStringSubmatch(match)[1])
		escaped, err := escapeValue(ctx[key])
		if err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind %s: %w", key, err)
		}
		return escaped
	})
	if bindErr != nil {
		return Result{State: StateInvalid, MissingKeys: []string{}, Reasons: []string{bindErr.Error()}}
	}

	parsed, err := ir.DecodeJSON([]byte(rendered))
	if err != nil {
		return Result{State: StateInvalid, MissingKeys: []string{}, Reasons: []string{ReasonMalformedJSON}}
	}
	out, err := ir.CanonicalString(parsed)
	if err != nil {
		return Result{State: StateInvalid, MissingKeys: []string{}, Reasons: []string{err.Error()}}
	}
	return Result{State: StateReady, MissingKeys: []string{}, OutputJSON: out}
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// escapeValue renders v as text and escapes it for use inside a JSON string
// literal. Strings are used as-is; every other value is rendered as its
// canonical JSON text.
func escapeValue(v any) (string, error) {
	var text string
	switch val := v.(type) {
	case string:
		text = val
	default:
		s, err := ir.CanonicalString(val)
		if err != nil {
			return "", err
		}
		text = s
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(text); err != nil {
		return "", err
	}
	quoted := strings.TrimSuffix(buf.String(), "\n")
	return quoted[1 : len(quoted)-1], nil
}
