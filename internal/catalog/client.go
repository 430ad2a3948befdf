// Package catalog reads exam sessions, products, and coupons from the
// backing data store through a single whitelisted query capability. The core
// never sees store credentials directly; everything goes through Client.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tables the query capability may touch. Anything else is rejected before a
// request leaves the process.
const (
	TableSessions = "exam_sessions"
	TableProducts = "exam_products"
	TableCoupons  = "coupons"
)

var allowedTables = map[string]bool{
	TableSessions: true,
	TableProducts: true,
	TableCoupons:  true,
}

// ErrTableNotAllowed is returned for queries against tables outside the whitelist.
var ErrTableNotAllowed = errors.New("catalog: table not allowed")

// QueryError reports a non-success response from the backing store. It is
// distinct from a negative query outcome (zero rows), which is not an error.
type QueryError struct {
	Table   string
	Status  int
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("catalog: query %s failed: status=%d %s", e.Table, e.Status, e.Message)
}

// QueryOptions mirror the PostgREST-style read parameters the store accepts.
type QueryOptions struct {
	Select string `json:"select"`
	Filter string `json:"filter"`
	Order  string `json:"order"`
	Limit  int    `json:"limit"`
}

// Client issues read-only queries against the backing store's REST surface.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Logger  zerolog.Logger
}

// NewClient constructs a Client with a traced HTTP transport.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger: logger,
	}
}

// Query fetches rows from one of the whitelisted tables and returns the raw
// JSON array. Filter strings are passed through as already-encoded query
// fragments (e.g. "is_active=eq.true").
func (c *Client) Query(ctx context.Context, table string, opts QueryOptions) (json.RawMessage, error) {
	if !allowedTables[table] {
		return nil, fmt.Errorf("%w: %q", ErrTableNotAllowed, table)
	}
	sel := opts.Select
	if sel == "" {
		sel = "*"
	}
	var b strings.Builder
	b.WriteString(c.BaseURL)
	b.WriteString("/rest/v1/")
	b.WriteString(table)
	b.WriteString("?select=")
	b.WriteString(url.QueryEscape(sel))
	if opts.Filter != "" {
		b.WriteString("&")
		b.WriteString(opts.Filter)
	}
	if opts.Order != "" {
		b.WriteString("&order=")
		b.WriteString(url.QueryEscape(opts.Order))
	}
	if opts.Limit > 0 {
		b.WriteString("&limit=")
		b.WriteString(strconv.Itoa(opts.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &QueryError{Table: table, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QueryError{Table: table, Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Logger.Warn().Str("table", table).Int("status", resp.StatusCode).Msg("catalog query failed")
		return nil, &QueryError{Table: table, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// Sessions loads all active exam sessions ordered by date.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	raw, err := c.Query(ctx, TableSessions, QueryOptions{
		Filter: "is_active=eq.true",
		Order:  "date.asc",
	})
	if err != nil {
		return nil, err
	}
	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, &QueryError{Table: TableSessions, Message: "decode rows: " + err.Error()}
	}
	return sessions, nil
}

// Products loads all active exam products ordered by level then module type.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	raw, err := c.Query(ctx, TableProducts, QueryOptions{
		Filter: "is_active=eq.true",
		Order:  "level.asc,module_type.asc",
	})
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, &QueryError{Table: TableProducts, Message: "decode rows: " + err.Error()}
	}
	return products, nil
}

// Coupons runs an exact-match coupon lookup. Zero rows is a valid negative
// outcome for the caller to interpret, not an error.
func (c *Client) Coupons(ctx context.Context, code, sessionID string) ([]Coupon, error) {
	filter := fmt.Sprintf("code=eq.%s&is_active=eq.true&session_id=eq.%s",
		url.QueryEscape(strings.TrimSpace(code)), url.QueryEscape(sessionID))
	raw, err := c.Query(ctx, TableCoupons, QueryOptions{Filter: filter})
	if err != nil {
		return nil, err
	}
	var coupons []Coupon
	if err := json.Unmarshal(raw, &coupons); err != nil {
		return nil, &QueryError{Table: TableCoupons, Message: "decode rows: " + err.Error()}
	}
	return coupons, nil
}
