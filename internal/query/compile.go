package query

import (
	"fmt"
	"strings"
)

// columns is the fixed projection of every compiled query.
const columns = "run_id, id, seq, type, version, payload"

// orderBy gives every result set a total, collation-stable order.
const orderBy = "run_id COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC"

// Compile converts q to parameterized SQL over the events table.
// Returns (sql, params, error); q is validated first.
func Compile(q Select) (string, []any, error) {
	if res := Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", res.Error())
	}

	var (
		sb     strings.Builder
		params []any
	)
	sb.WriteString("SELECT " + columns + " FROM events")

	if q.Filter != nil {
		where, whereParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE " + where)
		params = append(params, whereParams...)
	}

	sb.WriteString(" ORDER BY " + orderBy)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

// compilePredicate returns a WHERE fragment. Values are never interpolated.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case PayloadEquals:
		return compilePayloadEquals(pred)
	case *PayloadEquals:
		return compilePayloadEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	if !eq.Field.Valid() {
		return "", nil, fmt.Errorf("unknown field %q", eq.Field)
	}
	return string(eq.Field) + " = ?", []any{eq.Value}, nil
}

// compilePayloadEquals guards on json_type so that values of different JSON
// types never compare equal (SQLite returns true as integer 1).
func compilePayloadEquals(pe PayloadEquals) (string, []any, error) {
	path, err := jsonPath(pe.Path)
	if err != nil {
		return "", nil, err
	}
	lit, err := classify(pe.Value)
	if err != nil {
		return "", nil, fmt.Errorf("payload %s: %w", pe.Path, err)
	}

	switch lit.kind {
	case kindNull:
		return "json_type(payload, ?) = 'null'", []any{path}, nil
	case kindBool:
		want := "false"
		if lit.param.(bool) {
			want = "true"
		}
		return "json_type(payload, ?) = ?", []any{path, want}, nil
	case kindString:
		return "json_type(payload, ?) = 'text' AND json_extract(payload, ?) = ?",
			[]any{path, path, lit.param}, nil
	default:
		return "json_type(payload, ?) IN ('integer', 'real') AND json_extract(payload, ?) = ?",
			[]any{path, path, lit.param}, nil
	}
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}
