package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/ports"
)

const DefaultTimeout = 300 * time.Second

var ErrNoAPIKey = errors.New("metabase api key is required")

// Client runs logical queries through Metabase's /api/dataset endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	databaseID int
	client     *http.Client
}

var _ ports.QueryBackendPort = (*Client)(nil)

func NewClient(baseURL, apiKey string, databaseID int, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		databaseID: databaseID,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type datasetResponse struct {
	Data struct {
		Rows []ports.Row `json:"rows"`
	} `json:"data"`
	Error  json.RawMessage `json:"error,omitempty"`
	Status string          `json:"status,omitempty"`
}

func (c *Client) RunQuery(ctx context.Context, q ports.Query) ([]ports.Row, error) {
	payload, err := c.payload(q)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/dataset", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &domain.TransientError{Op: q.Name, Err: err}
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, &domain.TransientError{Op: q.Name, Err: err}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.TransientError{Op: q.Name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: status %d: %s", q.Name, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out datasetResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &domain.TransientError{Op: q.Name, Err: fmt.Errorf("decode response: %w", err)}
	}
	// Metabase reports query errors with a 202 and an error field.
	if len(out.Error) > 0 && string(out.Error) != "null" {
		return nil, fmt.Errorf("%s: metabase error: %s", q.Name, errorText(out.Error))
	}
	return out.Data.Rows, nil
}

func errorText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// payload translates a logical query into an MBQL or native dataset request.
func (c *Client) payload(q ports.Query) (map[string]any, error) {
	if q.IsNative() {
		return map[string]any{
			"database": c.databaseID,
			"type":     "native",
			"native":   map[string]any{"query": q.Native},
		}, nil
	}
	if q.Source == "" {
		return nil, fmt.Errorf("query %s: no source", q.Name)
	}

	inner := map[string]any{"source-table": q.Source}

	if len(q.Aggregations) > 0 {
		aggs := make([]any, 0, len(q.Aggregations))
		for _, a := range q.Aggregations {
			switch a.Func {
			case ports.AggCount:
				aggs = append(aggs, []any{"count"})
			case ports.AggSum:
				if a.Field == nil {
					return nil, fmt.Errorf("query %s: sum without field", q.Name)
				}
				aggs = append(aggs, []any{"sum", fieldRef(*a.Field, false)})
			default:
				return nil, fmt.Errorf("query %s: unsupported aggregation %q", q.Name, a.Func)
			}
		}
		inner["aggregation"] = aggs
	}

	if len(q.Breakouts) > 0 {
		bs := make([]any, 0, len(q.Breakouts))
		for _, f := range q.Breakouts {
			bs = append(bs, fieldRef(f, true))
		}
		inner["breakout"] = bs
	}

	if len(q.Filters) > 0 {
		clauses := make([]any, 0, len(q.Filters))
		for _, f := range q.Filters {
			clause, err := filterClause(f)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", q.Name, err)
			}
			clauses = append(clauses, clause)
		}
		if len(clauses) == 1 {
			inner["filter"] = clauses[0]
		} else {
			inner["filter"] = append([]any{"and"}, clauses...)
		}
	}

	return map[string]any{
		"database": c.databaseID,
		"type":     "query",
		"query":    inner,
	}, nil
}

func fieldRef(f ports.Field, withUnit bool) []any {
	opts := map[string]any{"base-type": string(f.Type)}
	if withUnit && f.TemporalUnit != "" {
		opts["temporal-unit"] = f.TemporalUnit
	}
	return []any{"field", f.Name, opts}
}

func filterClause(f ports.Filter) ([]any, error) {
	ref := fieldRef(f.Field, false)
	switch f.Op {
	case ports.FilterBetween:
		if len(f.Values) != 2 {
			return nil, errors.New("between needs 2 values")
		}
		return []any{"between", ref, f.Values[0], f.Values[1]}, nil
	case ports.FilterEquals:
		if len(f.Values) == 0 {
			return nil, errors.New("= needs a value")
		}
		clause := []any{"=", ref}
		for _, v := range f.Values {
			clause = append(clause, v)
		}
		return clause, nil
	case ports.FilterWithinDays:
		return []any{">=", ref, []any{"relative-datetime", -f.Days, "day"}}, nil
	default:
		return nil, fmt.Errorf("unsupported filter %q", f.Op)
	}
}
