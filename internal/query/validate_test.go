package query

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Valid(t *testing.T) {
	for name, q := range map[string]Select{
		"empty":        {},
		"all fields":   {Filter: Where("r", "SYS_START", PayloadEquals{Path: "x", Value: uint64(7)})},
		"nested path":  {Filter: PayloadEquals{Path: "order.items_2.sku", Value: "A"}},
		"pointer and":  {Filter: &And{Predicates: []Predicate{&PayloadEquals{Path: "n", Value: float32(1.5)}}}},
		"version":      {Filter: Equals{Field: FieldVersion, Value: "1.0"}},
		"nil in and":   {Filter: And{Predicates: []Predicate{nil}}},
		"large uint64": {Filter: PayloadEquals{Path: "n", Value: uint64(math.MaxUint64)}},
	} {
		t.Run(name, func(t *testing.T) {
			res := Validate(q)
			assert.True(t, res.Valid, res.Error())
			assert.Empty(t, res.Problems)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	res := Validate(Select{
		Limit: -2,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "seq", Value: "1"},
			PayloadEquals{Path: "", Value: "x"},
			PayloadEquals{Path: "ok", Value: []any{1}},
			PayloadEquals{Path: "f", Value: math.NaN()},
			PayloadEquals{Path: "n", Value: json.Number("nope")},
		}},
	})

	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"limit -2 is negative",
		`unknown field "seq" (want one of [run_id id type version])`,
		"empty payload path",
		"payload ok: cannot compare []interface {} values",
		"payload f: non-finite number NaN",
		`payload n: invalid number "nope"`,
	}, res.Problems)
}

func TestValidate_PathSegments(t *testing.T) {
	for _, path := range []string{"a..b", ".a", "a.", "1a", "a b", "$.a", `a"b`} {
		res := Validate(Select{Filter: PayloadEquals{Path: path, Value: 1}})
		assert.False(t, res.Valid, path)
	}
}

func TestField_Valid(t *testing.T) {
	for _, f := range Fields {
		assert.True(t, f.Valid())
	}
	assert.False(t, Field("payload").Valid())
	assert.False(t, Field("").Valid())
}
