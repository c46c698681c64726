// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	ErrorType string      `json:"error_type,omitempty"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := describe(err)
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// WhoamiData is the data of whoami and login.
type WhoamiData struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	Role          string   `json:"role,omitempty"`
	Superuser     bool     `json:"is_superuser,omitempty"`
	Tenant        string   `json:"tenant,omitempty"`
	TenantName    string   `json:"tenant_name,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
	APIURL        string   `json:"api_url"`
	Storage       string   `json:"storage"`
}

// TenantChoice is one company offered at login.
type TenantChoice struct {
	SchemaName string `json:"schema_name"`
	Nome       string `json:"nome"`
}

// GetData is the data of get.
type GetData struct {
	Path   string          `json:"path"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// NotifyData is the data of notify.
type NotifyData struct {
	Topic  string `json:"topic"`
	Origin string `json:"origin"`
}

// VersionData is the data of version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
