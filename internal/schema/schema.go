package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/runledger/internal/ir"
)

//go:embed event.cue
var eventSchema string

// Validator checks records against the #Event definition.
// A Validator is not safe for concurrent use.
type Validator struct {
	ctx   *cue.Context
	event cue.Value
}

// RecordError describes why a record was rejected.
type RecordError struct {
	Malformed bool   // the line is not valid JSON
	Path      string // CUE path of the offending field, if known
	Message   string
}

func (e *RecordError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(eventSchema, cue.Filename("event.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Event"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile event schema: #Event not defined")
	}
	return &Validator{ctx: ctx, event: def}, nil
}

// ValidateRecord checks one raw log line and returns the decoded event.
// Errors are always *RecordError.
//
// ir.DecodeRecord decides acceptance, so a line passes here exactly when
// replay applies it. A line with repeated keys is judged by its last
// occurrence, as the decoder reads it; CUE then checks the decoded record.
// For lines the decoder rejects, CUE supplies the field path when it can.
func (v *Validator) ValidateRecord(line []byte) (ir.Event, error) {
	if _, err := ir.DecodeJSON(line); err != nil {
		return ir.Event{}, &RecordError{Malformed: true, Message: err.Error()}
	}

	ev, decodeErr := ir.DecodeRecord(line)
	if decodeErr != nil {
		if err := v.unify(line); err != nil {
			return ir.Event{}, err
		}
		return ir.Event{}, &RecordError{Message: decodeErr.Error()}
	}

	record, err := ir.EncodeRecord(ev)
	if err != nil {
		return ir.Event{}, &RecordError{Message: err.Error()}
	}
	if err := v.unify(record); err != nil {
		return ir.Event{}, err
	}
	return ev, nil
}

// unify checks a JSON document against #Event.
func (v *Validator) unify(doc []byte) *RecordError {
	expr, err := cuejson.Extract("record", doc)
	if err != nil {
		return &RecordError{Message: err.Error()}
	}
	data := v.ctx.BuildExpr(expr)
	if err := data.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := v.event.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first entry.
func formatCUEError(err error) *RecordError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &RecordError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &RecordError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}
