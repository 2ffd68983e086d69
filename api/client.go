// Package api is a typed client for the medication-assistant REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/gateway"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
)

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string // the backend's {"error": ...} text, possibly empty
	Method  string
	Path    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// IsStatus reports whether err carries a backend response with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// MessageOf returns the backend's error text, or fallback when err carries none.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	baseURL string
	doer    gateway.Doer // credential-aware chain
	raw     gateway.Doer // no credential stages; used for /auth/refresh
}

// New builds a client for baseURL (e.g. http://localhost:5018/api).
func New(baseURL string, doer, raw gateway.Doer) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[api.New] base url is required")
	}
	if doer == nil {
		return nil, errors.New("[api.New] doer is required")
	}
	if raw == nil {
		raw = doer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
		raw:     raw,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, c.doer, method, path, in, out)
}

func (c *Client) send(ctx context.Context, doer gateway.Doer, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "[api] marshal %s %s", method, path)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "[api] build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doer.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[api] %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[api] decode %s %s", method, path)
	}
	return nil
}

func decodeError(resp *http.Response, method, path string) error {
	apiErr := &Error{Status: resp.StatusCode, Method: method, Path: path}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apimodel.ErrorResponse
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

func userPath(userID string, parts ...string) string {
	p := "/users/" + url.PathEscape(userID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}
