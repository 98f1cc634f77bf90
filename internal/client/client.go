// Package client talks to a sketchstore server and bridges editor change
// events to debounced saves.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaakkos/sketchstore/internal/api"
	"github.com/jaakkos/sketchstore/internal/domain"
)

// ErrClosed is returned by Bridge.Notify after Close.
var ErrClosed = errors.New("bridge closed")

// RemoteError is a tRPC error reported by the server.
type RemoteError struct {
	Code       api.ErrorCode
	Message    string
	HTTPStatus int
	Path       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Path, e.Code, e.Message)
}

// Client calls the editor procedures over HTTP.
type Client struct {
	baseURL string
	prefix  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the server at baseURL, e.g. http://localhost:3000.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  api.DefaultPrefix,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStoreData fetches the stored snapshot.
func (c *Client) GetStoreData(ctx context.Context) (domain.StoreData, error) {
	var out domain.StoreData
	err := c.query(ctx, api.PathGetStoreData, &out)
	return out, err
}

// SaveStoreData replaces the stored snapshot with data.
func (c *Client) SaveStoreData(ctx context.Context, data json.RawMessage) (domain.SaveResult, error) {
	var out domain.SaveResult
	body, err := json.Marshal(domain.SaveInput{Data: data})
	if err != nil {
		return out, fmt.Errorf("encode input: %w", err)
	}
	err = c.mutate(ctx, api.PathSaveStoreData, body, &out)
	return out, err
}

// ClearStoreData removes the stored snapshot.
func (c *Client) ClearStoreData(ctx context.Context) (domain.ClearResult, error) {
	var out domain.ClearResult
	err := c.mutate(ctx, api.PathClearStoreData, nil, &out)
	return out, err
}

func (c *Client) query(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.prefix+url.PathEscape(path), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) mutate(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.prefix+url.PathEscape(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var env api.ErrorEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Error.Data.Code == "" {
			return &RemoteError{
				Code:       api.CodeInternal,
				Message:    strings.TrimSpace(string(data)),
				HTTPStatus: resp.StatusCode,
				Path:       path,
			}
		}
		return &RemoteError{
			Code:       env.Error.Data.Code,
			Message:    env.Error.Message,
			HTTPStatus: resp.StatusCode,
			Path:       path,
		}
	}

	var env api.ResultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	if err := json.Unmarshal(env.Result.Data, out); err != nil {
		return fmt.Errorf("%s: decode output: %w", path, err)
	}
	return nil
}
