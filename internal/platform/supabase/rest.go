package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// CodeNoRows is PostgREST's answer to a single-object read that matched nothing.
	CodeNoRows = "PGRST116"
	// CodeRangeNotSatisfiable is PostgREST's answer to an offset past the last row.
	CodeRangeNotSatisfiable = "PGRST103"
)

// RestClient is a thin PostgREST client authenticated with a service key.
type RestClient struct {
	baseClient
}

func NewRestClient(cfg Config) *RestClient {
	return &RestClient{baseClient: newBaseClient(cfg)}
}

func (c *RestClient) Configured() bool {
	return c.configured()
}

// Query describes one table read. Filters are passed verbatim, e.g. {"user_id": "eq.42"}.
type Query struct {
	Select  string
	Filters map[string]string
	Order   string
	Offset  int
	Limit   int
	Count   bool
	Single  bool
}

func (c *RestClient) tableURL(table string, query url.Values) string {
	u := c.baseURL + restPrefix + "/" + url.PathEscape(table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Select reads rows into out and returns the exact total when q.Count is set, otherwise -1.
// A counted read whose offset is past the last row leaves out untouched and still reports the total.
func (c *RestClient) Select(ctx context.Context, table string, q Query, out any) (int64, error) {
	params := url.Values{}
	if q.Select != "" {
		params.Set("select", q.Select)
	}
	for k, v := range q.Filters {
		params.Set(k, v)
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	headers := http.Header{}
	if q.Count {
		headers.Set("Prefer", "count=exact")
	}
	if q.Single {
		headers.Set("Accept", "application/vnd.pgrst.object+json")
	}

	resp, err := c.do(ctx, http.MethodGet, c.tableURL(table, params), headers, nil, out)
	if err != nil {
		if q.Count && resp != nil && isRangeNotSatisfiable(err) {
			return max(parseContentRangeTotal(resp.Header.Get("Content-Range")), 0), nil
		}
		return 0, err
	}
	if !q.Count {
		return -1, nil
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range")), nil
}

// Insert writes row and decodes the stored representation into out.
func (c *RestClient) Insert(ctx context.Context, table string, row, out any) error {
	headers := http.Header{"Prefer": {"return=representation"}}
	_, err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), headers, row, out)
	return err
}

// Delete removes matching rows and returns how many were deleted.
func (c *RestClient) Delete(ctx context.Context, table string, filters map[string]string) (int64, error) {
	params := url.Values{}
	for k, v := range filters {
		params.Set(k, v)
	}
	headers := http.Header{"Prefer": {"return=minimal, count=exact"}}
	resp, err := c.do(ctx, http.MethodDelete, c.tableURL(table, params), headers, nil, nil)
	if err != nil {
		return 0, err
	}
	total := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if total < 0 {
		return 0, nil
	}
	return total, nil
}

// Ping checks that the REST endpoint answers.
func (c *RestClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+restPrefix+"/", nil, nil, nil)
	return err
}

// IsNoRows reports whether err is PostgREST's no-rows answer to a single-object read.
func IsNoRows(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNoRows
}

func isRangeNotSatisfiable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusRequestedRangeNotSatisfiable || apiErr.Code == CodeRangeNotSatisfiable
}

// parseContentRangeTotal reads the total from "0-9/42" or "*/0"; -1 when unknown.
func parseContentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return total
}
