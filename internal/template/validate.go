package template

import (
	"regexp"
	"sort"

	"github.com/roach88/runledger/internal/ir"
)

var unresolvedRe = regexp.MustCompile(`\{\{.*\}\}`)

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

// Validate checks compiled output: it must be a JSON object carrying every
// required key, with no unresolved placeholders. Reasons are sorted.
func Validate(outputJSON string, requiredKeys []string) ValidationResult {
	parsed, err := ir.DecodeJSON([]byte(outputJSON))
	if err != nil {
		return ValidationResult{Valid: false, Reasons: []string{"Invalid JSON syntax"}}
	}

	reasons := []string{}
	if obj, ok := parsed.(map[string]any); ok {
		for _, key := range requiredKeys {
			if _, ok := obj[key]; !ok {
				reasons = append(reasons, "Missing required key: "+key)
			}
		}
	} else {
		reasons = append(reasons, "Output is not a JSON object")
	}

	if unresolvedRe.MatchString(outputJSON) {
		reasons = append(reasons, "Unresolved placeholders remain in output")
	}

	sort.Strings(reasons)
	return ValidationResult{Valid: len(reasons) == 0, Reasons: reasons}
}
