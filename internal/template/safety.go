package template

import (
	"errors"
	"fmt"
	"strings"
)

// SafetyError reports a protected section that a new version dropped.
type SafetyError struct {
	TemplateID string
	From, To   string // version ids
	Section    string
}

func (e *SafetyError) Error() string {
	snippet := e.Section
	if r := []rune(snippet); len(r) > 20 {
		snippet = string(r[:20])
	}
	return fmt.Sprintf("safety violation: protected section removed in %s@%s (was in %s): %q",
		e.TemplateID, e.To, e.From, snippet)
}

// IsSafetyViolation reports whether err is a *SafetyError.
func IsSafetyViolation(err error) bool {
	var se *SafetyError
	return errors.As(err, &se)
}

// AssertSafeActivation checks that next keeps every protected section of old.
// A nil old (first version) or override=true always passes.
func AssertSafeActivation(old *Version, next Version, override bool) error {
	if override || old == nil {
		return nil
	}
	for _, section := range old.ProtectedSections {
		if !strings.Contains(next.Body, section) {
			return &SafetyError{
				TemplateID: next.TemplateID,
				From:       old.VersionID,
				To:         next.VersionID,
				Section:    section,
			}
		}
	}
	return nil
}
