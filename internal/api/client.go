// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the single configured HTTP client used to talk to
// the compras backend.
//
// Credentials travel only as cookies held by the client's jar; nothing in
// this package reads or stores a token value. Every request carries the
// default headers (notably the tenant header once a company is selected).
// Failed requests pass through the registered error interceptors, which is
// where the session package hooks its 401 handling.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultTenantHeader carries the selected company schema.
	DefaultTenantHeader = "X-Tenant-ID"

	// RequestIDHeader tags each request for correlation with server logs.
	RequestIDHeader = "X-Request-ID"

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "compras-tui/1.0"
)

// Request describes one call. Requests are values the caller owns; the
// client never mutates them except for Retried, which the refresh
// coordinator sets before replaying.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "/auth/me/"
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Retried marks a request that has already been replayed after a
	// credential refresh. A retried request never triggers another refresh.
	Retried bool
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request
}

// JSON decodes the response body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.Request.Path, err)
	}
	return nil
}

// ErrorInterceptor handles a failed request. Returning a response with a nil
// error recovers the call; returning an error passes it on to the next
// interceptor and eventually the caller.
type ErrorInterceptor func(ctx context.Context, req *Request, err error) (*Response, error)

// InterceptorID identifies a registered interceptor for Eject.
type InterceptorID uint64

type registeredInterceptor struct {
	id InterceptorID
	fn ErrorInterceptor
}

// Client is the backend HTTP client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	jar          *Jar
	tenantHeader string
	log          zerolog.Logger

	mu           sync.RWMutex
	defaults     http.Header
	interceptors []registeredInterceptor
	nextID       InterceptorID
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "https://compras.example.com/api").
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	jar, err := NewJar()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		jar:          jar,
		tenantHeader: DefaultTenantHeader,
		log:          zerolog.Nop(),
		defaults:     make(http.Header),
	}, nil
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithLogger sets the logger used for request/response lines.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log.With().Str("component", "api").Logger()
	c.jar.log = c.log
	return c
}

// WithTenantHeader changes the header carrying the tenant schema.
func (c *Client) WithTenantHeader(name string) *Client {
	if name != "" {
		c.tenantHeader = http.CanonicalHeaderKey(name)
	}
	return c
}

// WithJar replaces the cookie jar, e.g. with one restored from storage.
func (c *Client) WithJar(jar *Jar) *Client {
	jar.log = c.log
	c.jar = jar
	c.httpClient.Jar = jar
	return c
}

// WithInsecureSkipVerify disables TLS verification. Local development only.
func (c *Client) WithInsecureSkipVerify(skip bool) *Client {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok && skip {
		t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true} // #nosec G402 -- opt-in dev flag
	}
	return c
}

// WithTransport replaces the round tripper (tests, proxies).
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.httpClient.Transport = rt
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() *Jar {
	return c.jar
}

// =============================================================================
// DEFAULT HEADERS
// =============================================================================

// SetDefaultHeader sets a header sent with every request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults.Set(key, value)
}

// DeleteDefaultHeader removes a default header.
func (c *Client) DeleteDefaultHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults.Del(key)
}

// DefaultHeader returns the current value of a default header.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults.Get(key)
}

// SetTenant attaches the tenant schema to every subsequent request.
func (c *Client) SetTenant(schema string) {
	c.SetDefaultHeader(c.tenantHeader, schema)
}

// ClearTenant stops sending the tenant header.
func (c *Client) ClearTenant() {
	c.DeleteDefaultHeader(c.tenantHeader)
}

// Tenant returns the schema currently attached, or "".
func (c *Client) Tenant() string {
	return c.DefaultHeader(c.tenantHeader)
}

// =============================================================================
// INTERCEPTORS
// =============================================================================

// Use registers an error interceptor and returns its id.
func (c *Client) Use(fn ErrorInterceptor) InterceptorID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.interceptors = append(c.interceptors, registeredInterceptor{id: c.nextID, fn: fn})
	return c.nextID
}

// Eject removes a previously registered interceptor. Unknown ids are ignored.
func (c *Client) Eject(id InterceptorID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ic := range c.interceptors {
		if ic.id == id {
			c.interceptors = append(c.interceptors[:i:i], c.interceptors[i+1:]...)
			return
		}
	}
}

// InterceptorCount returns the number of registered interceptors.
func (c *Client) InterceptorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.interceptors)
}

// =============================================================================
// REQUESTS
// =============================================================================

// Do sends req and runs the error interceptors on failure.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.mu.RLock()
	chain := make([]registeredInterceptor, len(c.interceptors))
	copy(chain, c.interceptors)
	c.mu.RUnlock()

	for _, ic := range chain {
		resp, err = ic.fn(ctx, req, err)
		if err == nil {
			return resp, nil
		}
	}
	return nil, err
}

// Get issues a GET for path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST with body encoded as JSON (nil sends no body).
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	req := &Request{Method: http.MethodPost, Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		req.Body = data
	}
	return c.Do(ctx, req)
}

// send performs one round trip without interceptors.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	if req.Path == "" || strings.Contains(req.Path, "://") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, req.Path)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.mu.RLock()
	for k, vs := range c.defaults {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	c.mu.RUnlock()
	for k, vs := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn().
			Str("request_id", requestID).
			Str("method", method).
			Str("path", req.Path).
			Err(err).
			Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, req.Path, err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, ErrResponseTooLarge)
	}

	// SECURITY: never log headers (cookies) or bodies
	c.log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Bool("retried", req.Retried).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Request:    req,
	}
	if httpResp.StatusCode >= 400 {
		return nil, newError(req, httpResp.StatusCode, data)
	}
	return resp, nil
}
