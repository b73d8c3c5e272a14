// Package postgrest implements datastore.Client over the PostgREST HTTP
// API, as exposed by Supabase under /rest/v1.
package postgrest

import (
	"bytes"
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

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/common"
)

const defaultTimeout = 10 * time.Second

// Config describes the PostgREST endpoint.
type Config struct {
	// BaseURL is the project URL; requests go to BaseURL + "/rest/v1".
	BaseURL string
	// AnonKey is sent as the apikey header on every request and as the
	// bearer when no user token is set.
	AnonKey string
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client is a datastore.Client bound to one bearer token.
type Client struct {
	restURL string
	anonKey string
	token   string
	http    *http.Client
}

var _ datastore.Client = (*Client)(nil)

// New creates a client presenting token. An empty token falls back to the
// anonymous key.
func New(cfg Config, token string) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		restURL: strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1",
		anonKey: cfg.AnonKey,
		token:   token,
		http:    hc,
	}
}

// NewFactory returns a datastore.Factory sharing cfg (and its HTTP client)
// across every token.
func NewFactory(cfg Config) datastore.Factory {
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return func(token string) (datastore.Client, error) {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("postgrest: base URL is empty: %w", common.ErrConfiguration)
		}
		return New(cfg, token), nil
	}
}

func (c *Client) Token() string { return c.token }

func (c *Client) Select(ctx context.Context, table string, q datastore.Query) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, invalid(err)
	}
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	addFilters(params, q.Filters)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return c.do(ctx, http.MethodGet, table, params, nil, "")
}

func (c *Client) Insert(ctx context.Context, table string, row datastore.Row) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, table, url.Values{}, row, "return=representation")
}

func (c *Client) Update(ctx context.Context, table string, values datastore.Row, filters ...datastore.Filter) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	params := url.Values{}
	addFilters(params, filters)
	return c.do(ctx, http.MethodPatch, table, params, values, "return=representation")
}

func (c *Client) Upsert(ctx context.Context, table string, row datastore.Row, onConflict string) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if !datastore.ValidIdentifier(onConflict) {
		return nil, invalid(fmt.Errorf("invalid conflict column %q", onConflict))
	}
	params := url.Values{}
	params.Set("on_conflict", onConflict)
	return c.do(ctx, http.MethodPost, table, params, row, "resolution=merge-duplicates,return=representation")
}

func (c *Client) Delete(ctx context.Context, table string, filters ...datastore.Filter) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	params := url.Values{}
	addFilters(params, filters)
	return c.do(ctx, http.MethodDelete, table, params, nil, "return=representation")
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, body any, prefer string) (datastore.Rows, error) {
	reqURL := c.restURL + "/" + table
	if enc := params.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, invalid(fmt.Errorf("encode body: %w", err))
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
	if err != nil {
		return nil, fmt.Errorf("postgrest: failed to create request: %w", err)
	}
	bearer := c.token
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set(common.APIKeyHeaderName, c.anonKey)
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postgrest: network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("postgrest: failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return datastore.Rows{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows datastore.Rows
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("postgrest: failed to decode response: %w", err)
	}
	if rows == nil {
		rows = datastore.Rows{}
	}
	return rows, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	de := &datastore.Error{Status: resp.StatusCode}
	if json.Unmarshal(body, de) != nil || de.Message == "" {
		de.Message = http.StatusText(resp.StatusCode)
	}
	if de.Code == "" {
		de.Code = "HTTP" + strconv.Itoa(resp.StatusCode)
	}
	return de
}

func checkTable(table string) error {
	if !datastore.ValidIdentifier(table) {
		return invalid(fmt.Errorf("invalid table %q", table))
	}
	return nil
}

// checkFilters refuses unfiltered writes.
func checkFilters(filters []datastore.Filter) error {
	if len(filters) == 0 {
		return invalid(errors.New("update and delete require at least one filter"))
	}
	if err := datastore.ValidateFilters(filters); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	return &datastore.Error{Code: datastore.CodeInvalidRequest, Message: err.Error(), Status: http.StatusBadRequest}
}

func addFilters(params url.Values, filters []datastore.Filter) {
	for _, f := range filters {
		if f.Op == datastore.OpIn {
			vals := f.Value.([]any)
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = quoteListItem(formatValue(v))
			}
			params.Add(f.Column, "in.("+strings.Join(parts, ",")+")")
			continue
		}
		if f.Value == nil {
			switch f.Op {
			case datastore.OpEq:
				params.Add(f.Column, "is.null")
				continue
			case datastore.OpNeq:
				params.Add(f.Column, "not.is.null")
				continue
			}
		}
		params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case time.Time:
		return common.Timestamp(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func quoteListItem(s string) string {
	if strings.ContainsAny(s, `,()" `) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
