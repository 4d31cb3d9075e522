// Package supabase talks to the hosted auth (GoTrue) and table (PostgREST) APIs over HTTP.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	authPrefix = "/auth/v1"
	restPrefix = "/rest/v1"

	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 64 * 1024
)

var ErrNotConfigured = errors.New("supabase is not configured")

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type baseClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newBaseClient(cfg Config) baseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return baseClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *baseClient) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// do sends body as JSON and decodes a 2xx answer into out when out is non-nil.
func (c *baseClient) do(ctx context.Context, method, url string, headers http.Header, body, out any) (*http.Response, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal supabase request failed: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build supabase request failed: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, parseAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("read supabase response failed: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp, fmt.Errorf("parse supabase json failed: %w", err)
	}
	return resp, nil
}

// parseAPIError understands both GoTrue and PostgREST error bodies.
func parseAPIError(status int, raw []byte) *APIError {
	var body struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Msg              string          `json:"msg"`
		Message          string          `json:"message"`
		Details          string          `json:"details"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	var code string
	if len(body.Code) > 0 && json.Unmarshal(body.Code, &code) != nil {
		code = ""
	}
	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case code != "":
		apiErr.Code = code
	case body.Error != "":
		apiErr.Code = body.Error
	}

	for _, msg := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.Details = body.Details
	return apiErr
}
