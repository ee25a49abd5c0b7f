package schema

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/runledger/internal/ir"
)

// LineStatus is the verdict for one log line. A line is ok or duplicate
// exactly when replay applies it (or skips it as already seen).
type LineStatus string

const (
	StatusOK        LineStatus = "ok"
	StatusMalformed LineStatus = "malformed" // not valid JSON
	StatusSchema    LineStatus = "schema"    // valid JSON that replay would discard
	StatusTornTail  LineStatus = "torn_tail" // unterminated final line that does not decode
	StatusDuplicate LineStatus = "duplicate" // identity already seen earlier in the log
)

// LineReport describes one non-blank line.
type LineReport struct {
	Line    int          `json:"line"`
	Status  LineStatus   `json:"status"`
	ID      string       `json:"id,omitempty"`
	Type    ir.EventType `json:"type,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Report summarizes a linted log.
type Report struct {
	Lines            []LineReport `json:"lines"`
	Valid            int          `json:"valid"`
	Malformed        int          `json:"malformed"`
	Schema           int          `json:"schema"`
	Duplicates       int          `json:"duplicates"`
	UnterminatedTail bool         `json:"unterminated_tail"`
}

// Clean reports whether every line is a distinct, valid record. A torn tail
// alone is tolerated by replay but is not clean.
func (r Report) Clean() bool {
	return r.Malformed == 0 && r.Schema == 0 && r.Duplicates == 0 && !r.UnterminatedTail
}

// LintLog reads a run log and classifies every non-blank line.
// Only read errors are returned.
func (v *Validator) LintLog(r io.Reader) (Report, error) {
	var report Report
	seen := make(map[string]int)

	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		raw, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return report, fmt.Errorf("read log: %w", err)
		}
		if len(raw) == 0 && errors.Is(err, io.EOF) {
			break
		}

		terminated := len(raw) > 0 && raw[len(raw)-1] == '\n'
		if !terminated {
			report.UnterminatedTail = true
		}

		if line := bytes.TrimSpace(raw); len(line) > 0 {
			report.add(v.lintLine(lineNo, line, terminated, seen))
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}
	return report, nil
}

func (v *Validator) lintLine(lineNo int, line []byte, terminated bool, seen map[string]int) LineReport {
	lr := LineReport{Line: lineNo}

	ev, err := v.ValidateRecord(line)
	if err != nil {
		var recErr *RecordError
		switch {
		case !terminated:
			lr.Status = StatusTornTail
		case errors.As(err, &recErr) && recErr.Malformed:
			lr.Status = StatusMalformed
		default:
			lr.Status = StatusSchema
		}
		lr.Message = err.Error()
		return lr
	}

	lr.Type = ev.Type
	id, err := ir.EventID(ev)
	if err != nil {
		lr.Status = StatusSchema
		lr.Message = err.Error()
		return lr
	}
	lr.ID = id

	if first, ok := seen[id]; ok {
		lr.Status = StatusDuplicate
		lr.Message = fmt.Sprintf("same identity as line %d", first)
		return lr
	}
	seen[id] = lineNo
	lr.Status = StatusOK
	return lr
}

func (r *Report) add(lr LineReport) {
	r.Lines = append(r.Lines, lr)
	switch lr.Status {
	case StatusOK:
		r.Valid++
	case StatusMalformed, StatusTornTail:
		r.Malformed++
	case StatusSchema:
		r.Schema++
	case StatusDuplicate:
		r.Duplicates++
	}
}
