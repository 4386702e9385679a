package ports

import (
	"context"
)

type FieldType string

const (
	TypeInteger  FieldType = "type/Integer"
	TypeFloat    FieldType = "type/Float"
	TypeText     FieldType = "type/Text"
	TypeDate     FieldType = "type/Date"
	TypeDateTime FieldType = "type/DateTimeWithLocalTZ"
)

type Field struct {
	Name         string
	Type         FieldType
	TemporalUnit string // "", "day", "month"
}

type AggregationFunc string

const (
	AggSum   AggregationFunc = "sum"
	AggCount AggregationFunc = "count"
)

type Aggregation struct {
	Func  AggregationFunc
	Field *Field // nil for count
}

type FilterOp string

const (
	FilterBetween    FilterOp = "between"     // Values[0] <= field <= Values[1], ISO dates
	FilterEquals     FilterOp = "="           // field = Values[0]
	FilterWithinDays FilterOp = "within-days" // field >= today - Days
)

type Filter struct {
	Op     FilterOp
	Field  Field
	Values []string
	Days   int
}

// Query is the logical description of an upstream request. Adapters decide how
// to put it on the wire; the core never builds transport requests itself.
type Query struct {
	Name         string // used in logs and metrics only
	Source       string // "card__<id>" for Metabase, a table name for SQL
	Aggregations []Aggregation
	Breakouts    []Field
	Filters      []Filter
	Native       string // raw SQL; when set the structured fields are ignored
}

func (q Query) IsNative() bool { return q.Native != "" }

func Between(f Field, from, to string) Filter {
	return Filter{Op: FilterBetween, Field: f, Values: []string{from, to}}
}

func Equals(f Field, value string) Filter {
	return Filter{Op: FilterEquals, Field: f, Values: []string{value}}
}

func WithinDays(f Field, days int) Filter {
	return Filter{Op: FilterWithinDays, Field: f, Days: days}
}

func Sum(f Field) Aggregation { return Aggregation{Func: AggSum, Field: &f} }
func CountRows() Aggregation  { return Aggregation{Func: AggCount} }

type QueryBackendPort interface {
	// RunQuery returns rows shaped [breakout..., aggregation...] for structured
	// queries, or the selected columns for native ones.
	// Retryable failures are reported as *domain.TransientError.
	RunQuery(ctx context.Context, q Query) ([]Row, error)
}
