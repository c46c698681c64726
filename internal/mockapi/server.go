// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Cookie names and lifetimes used by the backend.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	TenantHeader  = "X-Tenant-ID"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = time.Hour
)

// =============================================================================
// DATA
// =============================================================================

// Tenant is a company.
type Tenant struct {
	SchemaName string `json:"schema_name"`
	Nome       string `json:"nome"`
}

// Account is a user the backend accepts.
type Account struct {
	ID          int
	Username    string
	Password    string
	Email       string
	Role        string
	IsSuperuser bool
	// Tenants lists schema names the account belongs to
	Tenants []string
	// Permissions per schema; missing schemas get DefaultPermissions
	Permissions map[string]map[string]interface{}
}

// Processo is a tenant-scoped process record.
type Processo struct {
	ID     int    `json:"id"`
	Nome   string `json:"nome"`
	Status string `json:"status"`
	CRDII  string `json:"crdii"`
	Tipo   string `json:"tipo"`
}

// Stats counts endpoint hits.
type Stats struct {
	Logins    int64
	Refreshes int64
	Logouts   int64
	Me        int64
	Processos int64
	// Rejected counts requests turned away by the access check
	Rejected int64
}

// Options configures the server.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Secret signs tokens (default: random per server)
	Secret []byte
	Logger *zerolog.Logger
}

type claims struct {
	Kind string `json:"kind"`
	Gen  int64  `json:"gen"`
	jwt.RegisteredClaims
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger
	router     *mux.Router

	mu        sync.Mutex
	accounts  map[string]*Account
	tenants   map[string]Tenant
	processos map[string][]Processo
	revoked   map[string]bool
	accessGen int64

	failRefresh   bool
	failLogout    bool
	beforeRefresh func()
	beforeLogout  func()

	logins, refreshes, logouts, me, listed, rejected atomic.Int64
}

// New creates an empty server.
func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	s := &Server{
		secret:     opts.Secret,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		log:        log,
		accounts:   make(map[string]*Account),
		tenants:    make(map[string]Tenant),
		processos:  make(map[string][]Processo),
		revoked:    make(map[string]bool),
	}
	s.router = s.routes()
	return s
}

// NewDemo creates a server seeded with two tenants and three accounts:
// maria/segredo (both tenants), joao/segredo (alfa only) and dev/dev
// (superuser, no tenant of its own).
func NewDemo(opts Options) *Server {
	s := New(opts)
	s.AddTenant(Tenant{SchemaName: "public", Nome: "Global"})
	s.AddTenant(Tenant{SchemaName: "alfa", Nome: "Construtora Alfa"})
	s.AddTenant(Tenant{SchemaName: "beta", Nome: "Beta Engenharia"})
	s.AddAccount(Account{ID: 1, Username: "maria", Password: "segredo", Email: "maria@alfa.com.br", Role: "compras", Tenants: []string{"alfa", "beta"}})
	s.AddAccount(Account{ID: 2, Username: "joao", Password: "segredo", Email: "joao@alfa.com.br", Role: "gestor", Tenants: []string{"alfa"}})
	s.AddAccount(Account{ID: 3, Username: "dev", Password: "dev", Email: "dev@compras.local", Role: "dev", IsSuperuser: true})
	s.AddProcesso("alfa", Processo{ID: 101, Nome: "Cimento CP-II lote 4", Status: "nao_concluido", CRDII: "Obra Centro", Tipo: "compra"})
	s.AddProcesso("alfa", Processo{ID: 102, Nome: "Locação de andaimes", Status: "parcial", CRDII: "Obra Centro", Tipo: "servico"})
	s.AddProcesso("beta", Processo{ID: 201, Nome: "Vergalhões CA-50", Status: "concluido", CRDII: "Galpão Norte", Tipo: "compra"})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddTenant registers a tenant.
func (s *Server) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.SchemaName] = t
}

// AddAccount registers an account.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := a
	s.accounts[a.Username] = &acc
}

// AddProcesso appends a processo to a tenant.
func (s *Server) AddProcesso(schema string, p Processo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processos[schema] = append(s.processos[schema], p)
}

// =============================================================================
// SWITCHES
// =============================================================================

// ExpireAccessTokens invalidates every access token issued so far. Tokens
// issued afterwards (by login or refresh) are accepted.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessGen++
}

// FailRefresh makes the refresh endpoint answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// FailLogout makes the logout endpoint answer 500.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// OnRefresh sets a hook run at the start of every refresh call.
func (s *Server) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeRefresh = fn
}

// OnLogout sets a hook run at the start of every logout call.
func (s *Server) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeLogout = fn
}

// Stats returns endpoint counters.
func (s *Server) Stats() Stats {
	return Stats{
		Logins:    s.logins.Load(),
		Refreshes: s.refreshes.Load(),
		Logouts:   s.logouts.Load(),
		Me:        s.me.Load(),
		Processos: s.listed.Load(),
		Rejected:  s.rejected.Load(),
	}
}

// =============================================================================
// ROUTES
// =============================================================================

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login/", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout/", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me/", s.requireAccess(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/token/refresh/", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/processos/", s.requireAccess(s.handleProcessos)).Methods(http.MethodGet)
	api.HandleFunc("/processos/{id:[0-9]+}/", s.requireAccess(s.handleProcesso)).Methods(http.MethodGet)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("request_id", r.Header.Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("tenant", r.Header.Get(TenantHeader)).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// =============================================================================
// TOKENS
// =============================================================================

func (s *Server) issue(username, kind string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	gen := s.accessGen
	s.mu.Unlock()

	now := time.Now()
	c := claims{
		Kind: kind,
		Gen:  gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

var errTokenInvalid = errors.New("token is invalid or expired")

func (s *Server) parse(raw, kind string) (*claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	c := &claims{}
	tok, err := parser.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid || c.Kind != kind {
		return nil, errTokenInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == "access" && c.Gen < s.accessGen {
		return nil, errTokenInvalid
	}
	if kind == "refresh" && s.revoked[c.ID] {
		return nil, errTokenInvalid
	}
	return c, nil
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func deleteCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
}

// requireAccess rejects requests without a valid access cookie.
func (s *Server) requireAccess(next func(http.ResponseWriter, *http.Request, *Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, body := s.authorize(r)
		if acc == nil {
			s.rejected.Add(1)
			writeJSON(w, http.StatusUnauthorized, body)
			return
		}
		next(w, r, acc)
	}
}

// authorize resolves the access cookie to an account, or returns the 401
// body explaining why it could not.
func (s *Server) authorize(r *http.Request) (*Account, map[string]string) {
	cookie, err := r.Cookie(AccessCookie)
	if err != nil {
		return nil, detail("Authentication credentials were not provided.")
	}
	c, err := s.parse(cookie.Value, "access")
	if err != nil {
		return nil, map[string]string{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		}
	}
	s.mu.Lock()
	acc := s.accounts[c.Subject]
	s.mu.Unlock()
	if acc == nil {
		return nil, detail("User not found")
	}
	return acc, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

type loginBody struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	TenantSchemaName string `json:"tenant_schema_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)

	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON inválido"))
		return
	}

	s.mu.Lock()
	acc := s.accounts[body.Username]
	s.mu.Unlock()
	if acc == nil || acc.Password != body.Password {
		writeJSON(w, http.StatusUnauthorized, detail("No active account found with the given credentials"))
		return
	}

	tenant, choices, err := s.selectTenant(acc, body.TenantSchemaName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detail(err.Error()))
		return
	}
	if choices != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"action":  "select_tenant",
			"tenants": choices,
		})
		return
	}

	access, err := s.issue(acc.Username, "access", s.accessTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, detail(err.Error()))
		return
	}
	refresh, err := s.issue(acc.Username, "refresh", s.refreshTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, detail(err.Error()))
		return
	}
	s.setCookie(w, AccessCookie, access, s.accessTTL)
	s.setCookie(w, RefreshCookie, refresh, s.refreshTTL)

	resp := map[string]interface{}{"access": access, "refresh": refresh}
	if tenant != nil {
		resp["tenant"] = tenant
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectTenant mirrors the backend's login rules: an explicit schema must
// belong to the account (superusers may pick any); otherwise one tenant
// logs straight in and several ask for a choice.
func (s *Server) selectTenant(acc *Account, schema string) (*Tenant, []Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schema != "" {
		t, ok := s.tenants[schema]
		if !ok {
			return nil, nil, errors.New("Empresa não encontrada.")
		}
		if !acc.IsSuperuser && !contains(acc.Tenants, schema) {
			return nil, nil, errors.New("Você não tem permissão nesta empresa.")
		}
		return &t, nil, nil
	}

	switch len(acc.Tenants) {
	case 0:
		if acc.IsSuperuser {
			if t, ok := s.tenants["public"]; ok {
				return &t, nil, nil
			}
			return nil, nil, nil
		}
		return nil, nil, errors.New("Seu usuário não está vinculado a nenhuma empresa.")
	case 1:
		t := s.tenants[acc.Tenants[0]]
		return &t, nil, nil
	}

	choices := make([]Tenant, 0, len(acc.Tenants))
	for _, schema := range acc.Tenants {
		choices = append(choices, s.tenants[schema])
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].SchemaName < choices[j].SchemaName })
	return nil, choices, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	s.mu.Lock()
	hook, fail := s.beforeRefresh, s.failRefresh
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	invalid := map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"}
	if fail {
		writeJSON(w, http.StatusUnauthorized, invalid)
		return
	}
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, invalid)
		return
	}
	c, err := s.parse(cookie.Value, "refresh")
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, invalid)
		return
	}

	access, err := s.issue(c.Subject, "access", s.accessTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, detail(err.Error()))
		return
	}
	s.setCookie(w, AccessCookie, access, s.accessTTL)
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logouts.Add(1)

	s.mu.Lock()
	hook, fail := s.beforeLogout, s.failLogout
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, detail("Erro interno"))
		return
	}

	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		if c, err := s.parse(cookie.Value, "refresh"); err == nil {
			s.mu.Lock()
			s.revoked[c.ID] = true
			s.mu.Unlock()
		}
	}
	deleteCookie(w, AccessCookie)
	deleteCookie(w, RefreshCookie)
	writeJSON(w, http.StatusOK, detail("Logout realizado com sucesso."))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, acc *Account) {
	s.me.Add(1)
	schema := r.Header.Get(TenantHeader)

	perms := DefaultPermissions()
	if p, ok := acc.Permissions[schema]; ok {
		for k, v := range p {
			perms[k] = v
		}
	}
	if acc.IsSuperuser {
		perms["can_create_tenant"] = true
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           acc.ID,
		"username":     acc.Username,
		"email":        acc.Email,
		"role":         acc.Role,
		"is_superuser": acc.IsSuperuser,
		"is_active":    true,
		"permissions":  perms,
	})
}

func (s *Server) tenantFor(w http.ResponseWriter, r *http.Request, acc *Account) (string, bool) {
	schema := r.Header.Get(TenantHeader)
	if schema == "" {
		writeJSON(w, http.StatusBadRequest, detail("Cabeçalho X-Tenant-ID ausente."))
		return "", false
	}
	if !acc.IsSuperuser && !contains(acc.Tenants, schema) {
		writeJSON(w, http.StatusForbidden, detail("Você não tem permissão nesta empresa."))
		return "", false
	}
	return schema, true
}

func (s *Server) handleProcessos(w http.ResponseWriter, r *http.Request, acc *Account) {
	s.listed.Add(1)
	schema, ok := s.tenantFor(w, r, acc)
	if !ok {
		return
	}
	s.mu.Lock()
	list := append([]Processo{}, s.processos[schema]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(list), "results": list})
}

func (s *Server) handleProcesso(w http.ResponseWriter, r *http.Request, acc *Account) {
	schema, ok := s.tenantFor(w, r, acc)
	if !ok {
		return
	}
	var id int
	fmt.Sscanf(mux.Vars(r)["id"], "%d", &id)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.processos[schema] {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, detail("Não encontrado."))
}

// =============================================================================
// HELPERS
// =============================================================================

// DefaultPermissions is the permission set of an account without a
// tenant-specific grant.
func DefaultPermissions() map[string]interface{} {
	return map[string]interface{}{
		"page_dashboard":      true,
		"page_compras":        true,
		"view_status_history": true,
		"gerenciar":           map[string]bool{"usuarios": false, "empresas": false, "crdiis": false},
		"relatorios":          map[string]bool{"geral": true, "financeiro": false},
		"can_create_processo": true,
		"can_edit_processo":   true,
		"can_delete_processo": false,
		"can_change_status":   true,
		"can_upload_file":     true,
		"can_download_file":   true,
		"can_delete_file":     false,
		"can_create_tenant":   false,
		"can_edit_user":       false,
		"can_delete_user":     false,
		"status_limits": map[string]bool{
			"nao_concluido": true, "parcial": true, "concluido": true,
			"arquivado": false, "cancelado": false,
		},
		"allowed_crdii": []int{},
	}
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
