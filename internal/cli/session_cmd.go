// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jeranaias/compras-tui/internal/app"
	"github.com/jeranaias/compras-tui/internal/session"
)

// =============================================================================
// LOGIN
// =============================================================================

// HandleLogin signs in. The username and company come from flags or
// prompts; the password from a no-echo prompt or, with --password-stdin,
// the first line of stdin.
func HandleLogin(ctx context.Context, env *Env, args Args) error {
	p := args.Parser()

	a, err := env.openApp(ctx, args)
	if err != nil {
		return err
	}
	defer closeApp(a, a.Log)

	username := firstNonEmpty(p.Flag("user"), p.Flag("u"), p.Positional(0))
	if username == "" {
		if username, err = env.prompt("Username: "); err != nil {
			return &CommandError{Command: "login", Action: "read username", Err: err}
		}
	}

	var password string
	if p.BoolFlag("password-stdin") {
		password, err = env.readLine()
	} else {
		password, err = env.ReadPassword("Password: ")
	}
	if err != nil {
		return &CommandError{Command: "login", Action: "read password", Err: err}
	}

	tenant := firstNonEmpty(p.Flag("tenant"), p.Flag("t"))
	res, err := session.SignIn(ctx, a.Auth, a.Store, username, password, tenant)
	if errors.Is(err, session.ErrTenantSelection) {
		choice, cerr := env.chooseTenant(res.Tenants)
		if cerr != nil {
			return cerr
		}
		_, err = session.SignIn(ctx, a.Auth, a.Store, username, password, choice.SchemaName)
	}
	if err != nil {
		return err
	}

	snap := a.Store.Snapshot()
	if args.JSON {
		return NewJSONResponse("login", whoamiData(a, snap)).Print(env.Out)
	}
	fmt.Fprintf(env.Out, "%s Signed in as %s at %s\n",
		SuccessStyle.Render("[OK]"), snap.User.DisplayName(), snap.Tenant.Label())
	return nil
}

// chooseTenant lists tenants on Err and reads a number or schema name.
func (e *Env) chooseTenant(tenants []session.Tenant) (session.Tenant, error) {
	fmt.Fprintln(e.Err, "Select a company:")
	for i, t := range tenants {
		fmt.Fprintf(e.Err, "  %d) %s (%s)\n", i+1, t.Label(), t.SchemaName)
	}
	answer, err := e.prompt(fmt.Sprintf("Company [1-%d]: ", len(tenants)))
	if err != nil {
		return session.Tenant{}, &CommandError{Command: "login", Action: "read company", Err: err}
	}
	answer = strings.TrimSpace(answer)

	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(tenants) {
		return tenants[n-1], nil
	}
	for _, t := range tenants {
		if strings.EqualFold(t.SchemaName, answer) {
			return t, nil
		}
	}
	return session.Tenant{}, &ValidationError{
		Field:   "company",
		Value:   answer,
		Reason:  "not one of the offered companies",
		Example: "1",
	}
}

// =============================================================================
// LOGOUT
// =============================================================================

// HandleLogout ends the session here and on the server.
func HandleLogout(ctx context.Context, env *Env, args Args) error {
	a, err := env.openApp(ctx, args)
	if err != nil {
		return err
	}
	defer closeApp(a, a.Log)

	was := a.Store.Authenticated()
	_ = a.Store.Logout(ctx)

	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"was_signed_in": was}).Print(env.Out)
	}
	if was {
		fmt.Fprintf(env.Out, "%s Signed out\n", SuccessStyle.Render("[OK]"))
	} else {
		fmt.Fprintln(env.Out, DimStyle.Render("Not signed in; local session cleared"))
	}
	return nil
}

// =============================================================================
// WHOAMI
// =============================================================================

// HandleWhoami shows the resumed session. It fails with ErrNotSignedIn
// when the bootstrap settled anonymous.
func HandleWhoami(ctx context.Context, env *Env, args Args) error {
	a, err := env.openApp(ctx, args)
	if err != nil {
		return err
	}
	defer closeApp(a, a.Log)

	snap := a.Store.Snapshot()
	if !snap.Authenticated() {
		return ErrNotSignedIn
	}

	data := whoamiData(a, snap)
	if args.JSON {
		return NewJSONResponse("whoami", data).Print(env.Out)
	}

	fmt.Fprintln(env.Out, TitleStyle.Render("Session"))
	fmt.Fprintln(env.Out, RenderSeparator())
	fmt.Fprintln(env.Out, RenderLabel("User")+ValueStyle.Render(data.Username))
	if data.Email != "" {
		fmt.Fprintln(env.Out, RenderLabel("Email")+ValueStyle.Render(data.Email))
	}
	fmt.Fprintln(env.Out, RenderLabel("Role")+ValueStyle.Render(data.Role))
	fmt.Fprintln(env.Out, RenderLabel("Superuser")+RenderYesNo(data.Superuser))
	fmt.Fprintln(env.Out, RenderLabel("Company")+ValueStyle.Render(fmt.Sprintf("%s (%s)", data.TenantName, data.Tenant)))
	fmt.Fprintln(env.Out, RenderLabel("API")+DimStyle.Render(data.APIURL))
	fmt.Fprintln(env.Out, RenderLabel("Storage")+DimStyle.Render(data.Storage))
	if len(data.Permissions) > 0 {
		fmt.Fprintln(env.Out, RenderLabel("Permissions")+ValueStyle.Render(strings.Join(data.Permissions, ", ")))
	}
	return nil
}

func whoamiData(a *app.App, snap session.Snapshot) WhoamiData {
	d := WhoamiData{
		Authenticated: snap.Authenticated(),
		APIURL:        a.Client.BaseURL(),
		Storage:       a.Config.Storage.Backend,
	}
	if u := snap.User; u != nil {
		d.Username = u.DisplayName()
		d.Email = u.Email
		d.Role = string(u.Role)
		d.Superuser = u.IsSuperuser
		d.Permissions = grantedPages(u.Permissions)
	}
	if t := snap.Tenant; t != nil {
		d.Tenant = t.SchemaName
		d.TenantName = t.Label()
	}
	return d
}

// grantedPages lists the screens the user may open.
func grantedPages(p session.Permissions) []string {
	var out []string
	add := func(ok bool, name string) {
		if ok {
			out = append(out, name)
		}
	}
	add(p.PageDashboard, "dashboard")
	add(p.PageCompras, "compras")
	add(p.Gerenciar.Usuarios, "usuarios")
	add(p.Gerenciar.Empresas, "empresas")
	add(p.Gerenciar.CRDIIs, "crdiis")
	add(p.Relatorios.Geral, "relatorios")
	add(p.Relatorios.Financeiro, "financeiro")
	return out
}

// =============================================================================
// GET
// =============================================================================

// HandleGet performs an authenticated GET through the session's client, so
// an expired access cookie is refreshed transparently.
func HandleGet(ctx context.Context, env *Env, args Args) error {
	p := args.Parser()
	raw := p.Positional(0)
	if raw == "" {
		return ErrMissingArgument("path", "compras get processos/")
	}

	path, query, err := splitPathQuery(raw, append(p.Flags("query"), p.Flags("q")...))
	if err != nil {
		return err
	}

	a, err := env.openApp(ctx, args)
	if err != nil {
		return err
	}
	defer closeApp(a, a.Log)

	if !a.Store.Authenticated() {
		return ErrNotSignedIn
	}

	resp, err := a.Client.Get(ctx, path, query)
	if err != nil {
		return err
	}

	if args.JSON {
		body := json.RawMessage(resp.Body)
		if !json.Valid(resp.Body) {
			quoted, _ := json.Marshal(string(resp.Body))
			body = quoted
		}
		return NewJSONResponse("get", GetData{Path: path, Status: resp.StatusCode, Body: body}).Print(env.Out)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Body, "", "  ") == nil {
		fmt.Fprintln(env.Out, pretty.String())
	} else {
		fmt.Fprintln(env.Out, string(resp.Body))
	}
	return nil
}

// splitPathQuery separates an inline query string and merges KEY=VALUE
// pairs into it.
func splitPathQuery(raw string, pairs []string) (string, url.Values, error) {
	if strings.Contains(raw, "://") {
		return "", nil, &ValidationError{
			Field:   "path",
			Value:   raw,
			Reason:  "must be relative to the API root",
			Example: "compras get processos/101/",
		}
	}

	path, rawQuery, _ := strings.Cut(raw, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, &ValidationError{Field: "query", Value: rawQuery, Reason: err.Error()}
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return "", nil, &ValidationError{
				Field:   "query",
				Value:   pair,
				Reason:  "must be KEY=VALUE",
				Example: "-q status=parcial",
			}
		}
		query.Add(k, v)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, query, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
