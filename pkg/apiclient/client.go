// Package apiclient is the REST client of the nexusd admin API. nexusctl
// uses it; so can anything else that manages storage nodes.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "nexusctl"
	mediaTypeJSON  = "application/json"
)

// Client talks to one nexusd node. A Client is cheap to copy; WithToken
// derives one that shares the underlying http.Client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client for the node at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(method, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = buf
	}

	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	h := req.Header
	h.Set("Accept", mediaTypeJSON)
	h.Set("User-Agent", userAgent)
	if payload != nil {
		h.Set("Content-Type", mediaTypeJSON)
	}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a request and decodes a JSON answer into out when out is non-nil
// and the server returned a body. Status codes of 400 and above come back as
// *APIError.
func (c *Client) do(method, path string, body, out any) error {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response of %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *Client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *Client) put(path string, body, out any) error {
	return c.do(http.MethodPut, path, body, out)
}

func (c *Client) delete(path string, out any) error {
	return c.do(http.MethodDelete, path, nil, out)
}
