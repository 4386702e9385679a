package ports

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dashboard-refresher/internal/series/core/domain"
)

// Row is one upstream result row. Cells arrive loosely typed (JSON numbers,
// strings, nulls, driver values); the accessors coerce them and fall back to
// zero values instead of failing, so one bad cell never aborts a fetch.
type Row []any

func (r Row) cell(i int) any {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

func (r Row) String(i int) string {
	switch v := r.cell(i).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Float(i int) float64 {
	var f float64
	switch v := r.cell(i).(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f = parseFloat(string(v))
	case string:
		f = parseFloat(v)
	case []byte:
		f = parseFloat(string(v))
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseFloat returns 0 for anything unparsable, including overflow.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// Int truncates toward zero, like the upstream int() casts did.
func (r Row) Int(i int) int64 {
	return int64(r.Float(i))
}

// Date reads a date or datetime cell ("2025-09-01", "2025-09-01T00:00:00Z",
// time.Time) as a UTC calendar day. ok is false for missing or unparsable cells.
func (r Row) Date(i int) (time.Time, bool) {
	switch v := r.cell(i).(type) {
	case time.Time:
		return domain.Day(v), true
	case string:
		return parseDatePrefix(v)
	case []byte:
		return parseDatePrefix(string(v))
	default:
		return time.Time{}, false
	}
}

func parseDatePrefix(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(domain.DateLayout) {
		return time.Time{}, false
	}
	t, err := domain.ParseDay(s[:len(domain.DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
