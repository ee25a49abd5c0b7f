package ir

import (
	"bytes"
	"encoding/json"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// objectText writes m as JSON text with keys in the given order.
func objectText(keys []string, m map[string]int) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func TestCanonicalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encoding ignores source key order", prop.ForAll(
		func(m map[string]int) bool {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			forward := objectText(keys, m)
			slices.Reverse(keys)
			backward := objectText(keys, m)

			a, err1 := MarshalCanonical(json.RawMessage(forward))
			b, err2 := MarshalCanonical(json.RawMessage(backward))
			return err1 == nil && err2 == nil && bytes.Equal(a, b)
		},
		gen.MapOf(gen.AlphaString(), gen.Int()),
	))

	properties.Property("encoding is total and valid JSON", prop.ForAll(
		func(strs map[string]string, nums []float64, flag bool) bool {
			payload := map[string]any{"flag": flag, "none": nil}
			for k, v := range strs {
				payload["s_"+k] = v
			}
			list := make([]any, len(nums))
			for i, n := range nums {
				list[i] = n
			}
			payload["nums"] = list

			out, err := MarshalCanonical(payload)
			return err == nil && json.Valid(out)
		},
		gen.MapOf(gen.AnyString(), gen.AnyString()),
		gen.SliceOf(gen.Float64Range(-1e12, 1e12)),
		gen.Bool(),
	))

	properties.Property("event identity survives the record round trip", prop.ForAll(
		func(strs map[string]string, ints map[string]int64, ratio float64) bool {
			payload := map[string]any{"ratio": ratio}
			for k, v := range strs {
				payload["s_"+k] = v
			}
			for k, v := range ints {
				payload["i_"+k] = v
			}
			ev := NewEvent(EventUserAction, payload)

			raw, err := EncodeRecord(ev)
			if err != nil {
				return false
			}
			decoded, err := DecodeRecord(raw)
			if err != nil {
				return false
			}
			return MustEventID(ev) == MustEventID(decoded)
		},
		gen.MapOf(gen.AlphaString(), gen.AnyString()),
		gen.MapOf(gen.AlphaString(), gen.Int64()),
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}
