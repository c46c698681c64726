// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/compras-tui/internal/api"
)

// DefaultLoginRatePerMinute matches the backend's login throttle.
const DefaultLoginRatePerMinute = 5

// loginRequest is the body of POST /auth/login/.
type loginRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	TenantSchemaName string `json:"tenant_schema_name,omitempty"`
}

// loginResponse covers both shapes the backend answers with. Token values
// are present in the body but ignored; the cookies carry them.
type loginResponse struct {
	Action  string   `json:"action"`
	Tenants []Tenant `json:"tenants"`
	Tenant  *Tenant  `json:"tenant"`
}

// LoginResult is the outcome of one exchange step.
type LoginResult struct {
	// SelectTenant is set when the user belongs to several tenants and must
	// pick one; Tenants lists them and no cookies were issued.
	SelectTenant bool
	Tenants      []Tenant

	// Tenant is the tenant the completed login is scoped to.
	Tenant *Tenant
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Authenticator performs the login exchange. A completed exchange leaves
// the credential cookies in the client's jar; the caller then hands the
// tenant to Store.Login.
type Authenticator struct {
	client  *api.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewAuthenticator creates an authenticator allowing perMinute attempts
// (default DefaultLoginRatePerMinute) with a burst of the same size.
func NewAuthenticator(client *api.Client, perMinute int, log zerolog.Logger) *Authenticator {
	if perMinute <= 0 {
		perMinute = DefaultLoginRatePerMinute
	}
	return &Authenticator{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:     log.With().Str("component", "login").Logger(),
	}
}

// Authenticate sends the credentials. With an empty tenantSchema the backend
// either completes the login (single tenant) or asks for a selection; with
// a schema it completes the login for that tenant.
func (a *Authenticator) Authenticate(ctx context.Context, username, password, tenantSchema string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if !a.limiter.Allow() {
		return nil, ErrLoginThrottled
	}

	resp, err := a.client.Post(ctx, PathLogin, loginRequest{
		Username:         username,
		Password:         password,
		TenantSchemaName: strings.TrimSpace(tenantSchema),
	})
	if err != nil {
		switch api.StatusCode(err) {
		case http.StatusUnauthorized:
			a.log.Info().Str("user", username).Msg("login rejected")
			return nil, ErrInvalidCredentials
		case http.StatusTooManyRequests:
			return nil, ErrLoginThrottled
		}
		return nil, fmt.Errorf("login failed: %s: %w", api.Detail(err), err)
	}

	var body loginResponse
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}

	if body.Action == "select_tenant" {
		if len(body.Tenants) == 0 {
			return nil, fmt.Errorf("%w: backend offered no tenants", ErrNoTenant)
		}
		return &LoginResult{SelectTenant: true, Tenants: body.Tenants}, nil
	}
	if body.Tenant == nil || !body.Tenant.Valid() {
		return nil, fmt.Errorf("%w: backend returned no tenant", ErrNoTenant)
	}

	a.log.Info().Str("user", username).Str("tenant", body.Tenant.SchemaName).Msg("login exchange completed")
	return &LoginResult{Tenant: body.Tenant}, nil
}

// SignIn runs the exchange and, when it completes, establishes the session
// in store. It returns ErrTenantSelection together with the offered tenants
// when the user must choose one first, and ErrIdentityUnavailable when the
// exchange completed but the store could not load the identity.
func SignIn(ctx context.Context, auth *Authenticator, store *Store, username, password, tenantSchema string) (*LoginResult, error) {
	res, err := auth.Authenticate(ctx, username, password, tenantSchema)
	if err != nil {
		return nil, err
	}
	if res.SelectTenant {
		return res, ErrTenantSelection
	}
	if err := store.Login(ctx, *res.Tenant); err != nil {
		return res, err
	}
	if !store.Authenticated() {
		return res, ErrIdentityUnavailable
	}
	return res, nil
}
