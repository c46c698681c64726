// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common client failures.
var (
	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrInvalidPath indicates a request path that is absolute or empty.
	ErrInvalidPath = errors.New("invalid request path")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status int
	Detail string
	Method string
	Path   string
	Body   []byte
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// newError builds an Error, pulling the backend's "detail" message when the
// body carries one.
func newError(req *Request, status int, body []byte) *Error {
	e := &Error{
		Status: status,
		Method: req.Method,
		Path:   req.Path,
		Body:   body,
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		e.Detail = payload.Detail
	} else if status >= 500 {
		e.Detail = http.StatusText(status)
	}
	return e
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// an *Error (transport failures, cancellations).
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is an authentication-required failure.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Detail returns the backend-provided message for err, or err.Error().
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return strings.TrimSpace(apiErr.Detail)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
