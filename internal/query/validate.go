package query

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ValidationResult lists the reasons a Select cannot be compiled.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Error joins the problems into one message, or returns "" when valid.
func (r ValidationResult) Error() string {
	return strings.Join(r.Problems, "; ")
}

// pathSegment is one payload key in a PayloadEquals path.
var pathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a Select without touching a database.
//
// Validate is a pure function with no side effects.
func Validate(q Select) ValidationResult {
	v := &validator{problems: []string{}}
	if q.Limit < 0 {
		v.addProblem("limit %d is negative", q.Limit)
	}
	v.validatePredicate(q.Filter)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case PayloadEquals:
		v.validatePayloadEquals(pred)
	case *PayloadEquals:
		v.validatePayloadEquals(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unsupported predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if !eq.Field.Valid() {
		v.addProblem("unknown field %q (want one of %v)", eq.Field, Fields)
	}
}

func (v *validator) validatePayloadEquals(pe PayloadEquals) {
	if _, err := jsonPath(pe.Path); err != nil {
		v.addProblem("%v", err)
	}
	if _, err := classify(pe.Value); err != nil {
		v.addProblem("payload %s: %v", pe.Path, err)
	}
}

// jsonPath converts "a.b" to the SQLite JSON path "$.a.b".
func jsonPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty payload path")
	}
	for _, seg := range strings.Split(path, ".") {
		if !pathSegment.MatchString(seg) {
			return "", fmt.Errorf("invalid payload path %q: segment %q must match %s", path, seg, pathSegment.String())
		}
	}
	return "$." + path, nil
}

// valueKind is the JSON type family a payload comparison matches.
type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
)

// literal is a payload value ready to bind.
type literal struct {
	kind  valueKind
	param any
}

// classify maps a Go value to the JSON type it must match and the SQL
// parameter it binds as.
func classify(v any) (literal, error) {
	switch val := v.(type) {
	case nil:
		return literal{kind: kindNull}, nil
	case bool:
		return literal{kind: kindBool, param: val}, nil
	case string:
		return literal{kind: kindString, param: val}, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return literal{kind: kindNumber, param: i}, nil
		}
		f, err := val.Float64()
		if err != nil {
			return literal{}, fmt.Errorf("invalid number %q", val.String())
		}
		return number(f)
	case int:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case int8:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case int16:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case int32:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case int64:
		return literal{kind: kindNumber, param: val}, nil
	case uint:
		return unsigned(uint64(val))
	case uint8:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case uint16:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case uint32:
		return literal{kind: kindNumber, param: int64(val)}, nil
	case uint64:
		return unsigned(val)
	case float32:
		return number(float64(val))
	case float64:
		return number(val)
	case map[string]any, []any:
		return literal{}, fmt.Errorf("cannot compare %T values", v)
	default:
		return literal{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func unsigned(u uint64) (literal, error) {
	if u <= math.MaxInt64 {
		return literal{kind: kindNumber, param: int64(u)}, nil
	}
	return literal{kind: kindNumber, param: float64(u)}, nil
}

func number(f float64) (literal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return literal{}, fmt.Errorf("non-finite number %v", f)
	}
	return literal{kind: kindNumber, param: f}, nil
}
