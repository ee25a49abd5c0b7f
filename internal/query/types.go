package query

// Predicate is a filter condition over the events table.
//
// Sealed: only types in this package implement it, so Compile and Validate
// can switch exhaustively.
type Predicate interface {
	predicateNode()
}

// Field is a TEXT column of the events table that Equals may compare.
type Field string

const (
	FieldRunID   Field = "run_id"
	FieldID      Field = "id"
	FieldType    Field = "type"
	FieldVersion Field = "version"
)

// Fields lists every comparable column.
var Fields = []Field{FieldRunID, FieldID, FieldType, FieldVersion}

// Valid reports whether f is one of the declared columns.
func (f Field) Valid() bool {
	switch f {
	case FieldRunID, FieldID, FieldType, FieldVersion:
		return true
	default:
		return false
	}
}

// Select returns indexed events matching Filter.
type Select struct {
	Filter Predicate // nil matches every event
	Limit  int       // 0 means no limit
}

// Equals matches rows whose column equals a literal.
//
//	<field> = ?
type Equals struct {
	Field Field
	Value string
}

func (Equals) predicateNode() {}

// PayloadEquals matches rows whose payload holds Value at Path.
//
// Path is a dot-separated list of object keys. Value is a string, bool,
// nil, or any Go or json.Number numeric value; nil matches an explicit JSON
// null and never a missing key.
type PayloadEquals struct {
	Path  string
	Value any
}

func (PayloadEquals) predicateNode() {}

// And matches rows that satisfy every predicate. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds the common conjunction used by the CLI: optional run and
// type columns plus payload equalities, in that order. Nil when nothing is
// constrained.
func Where(runID, eventType string, payload ...PayloadEquals) Predicate {
	var preds []Predicate
	if runID != "" {
		preds = append(preds, Equals{Field: FieldRunID, Value: runID})
	}
	if eventType != "" {
		preds = append(preds, Equals{Field: FieldType, Value: eventType})
	}
	for _, p := range payload {
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return And{Predicates: preds}
	}
}
