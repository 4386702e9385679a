package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/ports"
)

// QueryBackend runs logical queries against a SQL mirror of the warehouse.
// Sources like "card__9061" are resolved through Tables; anything else is
// used as a table name.
type QueryBackend struct {
	db      DB
	tables  map[string]string
	timeout time.Duration // per query; 0 relies on ctx alone
}

var _ ports.QueryBackendPort = (*QueryBackend)(nil)

func NewQueryBackend(db DB, tables map[string]string) *QueryBackend {
	return &QueryBackend{db: db, tables: tables}
}

// WithTimeout bounds every query by d.
func (b *QueryBackend) WithTimeout(d time.Duration) *QueryBackend {
	b.timeout = d
	return b
}

func (b *QueryBackend) RunQuery(ctx context.Context, q ports.Query) ([]ports.Row, error) {
	query, args := q.Native, []any(nil)
	if !q.IsNative() {
		var err error
		if query, args, err = b.render(q); err != nil {
			return nil, err
		}
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(q.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []ports.Row
	for rows.Next() {
		row := make(ports.Row, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(q.Name, err)
	}

	return out, nil
}

// Column names stay unquoted so they fold to lower case the same way the
// native queries' identifiers do.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func column(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return pq.QuoteIdentifier(name)
}

func (b *QueryBackend) table(source string) string {
	if t, ok := b.tables[source]; ok {
		return t
	}
	return source
}

func fieldExpr(f ports.Field) string {
	col := column(f.Name)
	switch f.TemporalUnit {
	case "day":
		return "CAST(date_trunc('day', " + col + ") AS DATE)"
	case "month":
		return "to_char(" + col + ", 'YYYY-MM')"
	default:
		return col
	}
}

// render builds
// SELECT <breakouts>, <aggregations> FROM <table> WHERE ... GROUP BY ... ORDER BY ...
func (b *QueryBackend) render(q ports.Query) (string, []any, error) {
	if q.Source == "" {
		return "", nil, fmt.Errorf("query %s: no source", q.Name)
	}
	if len(q.Aggregations) == 0 && len(q.Breakouts) == 0 {
		return "", nil, fmt.Errorf("query %s: nothing to select", q.Name)
	}

	var (
		selects []string
		groups  []string
		where   []string
		args    []any
	)
	for i, f := range q.Breakouts {
		selects = append(selects, fieldExpr(f))
		groups = append(groups, strconv.Itoa(i+1))
	}
	for _, a := range q.Aggregations {
		switch a.Func {
		case ports.AggCount:
			selects = append(selects, "COUNT(*)")
		case ports.AggSum:
			if a.Field == nil {
				return "", nil, fmt.Errorf("query %s: sum without field", q.Name)
			}
			selects = append(selects, "COALESCE(SUM("+column(a.Field.Name)+"), 0)")
		default:
			return "", nil, fmt.Errorf("query %s: unsupported aggregation %q", q.Name, a.Func)
		}
	}

	for _, f := range q.Filters {
		col := column(f.Field.Name)
		switch f.Op {
		case ports.FilterBetween:
			if len(f.Values) != 2 {
				return "", nil, fmt.Errorf("query %s: between needs 2 values", q.Name)
			}
			args = append(args, f.Values[0], f.Values[1])
			where = append(where, fmt.Sprintf("CAST(%s AS DATE) BETWEEN $%d AND $%d", col, len(args)-1, len(args)))
		case ports.FilterEquals:
			switch len(f.Values) {
			case 0:
				return "", nil, fmt.Errorf("query %s: = needs a value", q.Name)
			case 1:
				args = append(args, f.Values[0])
				where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
			default:
				args = append(args, pq.Array(f.Values))
				where = append(where, fmt.Sprintf("%s = ANY($%d)", col, len(args)))
			}
		case ports.FilterWithinDays:
			args = append(args, f.Days)
			where = append(where, fmt.Sprintf("CAST(%s AS DATE) >= CURRENT_DATE - CAST($%d AS INTEGER)", col, len(args)))
		default:
			return "", nil, fmt.Errorf("query %s: unsupported filter %q", q.Name, f.Op)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(pq.QuoteIdentifier(b.table(q.Source)))
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if len(groups) > 0 {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}
	return sb.String(), args, nil
}

// classify marks connection-level failures as transient so the fetcher
// retries them.
func classify(op string, err error) error {
	if isTransient(err) {
		return &domain.TransientError{Op: op, Err: err}
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientSQLState(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLState(pgErr.Code)
	}
	return false
}

// Class 08 connection exception, 40001 serialization failure,
// 53300 too many connections, 57P01 admin shutdown, 57014 query canceled.
func transientSQLState(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"):
		return true
	case code == "40001", code == "53300", code == "57P01", code == "57014":
		return true
	}
	return false
}
