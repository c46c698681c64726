// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "strings"

// =============================================================================
// IDENTITY
// =============================================================================

// Role is the user's role tag.
type Role string

// Roles known to the backend.
const (
	RoleAdministrador Role = "administrador"
	RoleGestor        Role = "gestor"
	RoleDiretoria     Role = "diretoria"
	RoleCompras       Role = "compras"
	RoleObra          Role = "obra"
	RoleFinanceiro    Role = "financeiro"
	RoleDev           Role = "dev"
)

// StatusLimits says which processo statuses the user may work with.
type StatusLimits struct {
	NaoConcluido bool `json:"nao_concluido"`
	Parcial      bool `json:"parcial"`
	Concluido    bool `json:"concluido"`
	Arquivado    bool `json:"arquivado"`
	Cancelado    bool `json:"cancelado"`
}

// ManagePermissions groups the administrative screens.
type ManagePermissions struct {
	Usuarios bool `json:"usuarios"`
	Empresas bool `json:"empresas"`
	CRDIIs   bool `json:"crdiis"`
}

// ReportPermissions groups the report screens.
type ReportPermissions struct {
	Geral      bool `json:"geral"`
	Financeiro bool `json:"financeiro"`
}

// Permissions is the per-tenant permission set embedded in the identity.
type Permissions struct {
	PageDashboard     bool              `json:"page_dashboard"`
	PageCompras       bool              `json:"page_compras"`
	ViewStatusHistory bool              `json:"view_status_history"`
	Gerenciar         ManagePermissions `json:"gerenciar"`
	Relatorios        ReportPermissions `json:"relatorios"`

	CanCreateProcesso bool `json:"can_create_processo"`
	CanEditProcesso   bool `json:"can_edit_processo"`
	CanDeleteProcesso bool `json:"can_delete_processo"`
	CanChangeStatus   bool `json:"can_change_status"`

	CanUploadFile   bool `json:"can_upload_file"`
	CanDownloadFile bool `json:"can_download_file"`
	CanDeleteFile   bool `json:"can_delete_file"`

	CanUploadProcesso     bool `json:"can_upload_processo"`
	CanUploadNotaFiscal   bool `json:"can_upload_nota_fiscal"`
	CanUploadBoletos      bool `json:"can_upload_boletos"`
	CanDownloadProcesso   bool `json:"can_download_processo"`
	CanDownloadNotaFiscal bool `json:"can_download_nota_fiscal"`
	CanDownloadBoletos    bool `json:"can_download_boletos"`

	CanEditUser     bool `json:"can_edit_user"`
	CanDeleteUser   bool `json:"can_delete_user"`
	CanCreateTenant bool `json:"can_create_tenant"`

	StatusLimits StatusLimits `json:"status_limits"`
	AllowedCRDII []int        `json:"allowed_crdii"`
}

// User is the identity returned by GET /auth/me/.
type User struct {
	ID          int         `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	IsSuperuser bool        `json:"is_superuser"`
	IsActive    bool        `json:"is_active"`
	Permissions Permissions `json:"permissions"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Permissions.AllowedCRDII = append([]int(nil), u.Permissions.AllowedCRDII...)
	return &c
}

// DisplayName returns the username, or the email when the username is empty.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// =============================================================================
// TENANT
// =============================================================================

// Tenant is a company the session is scoped to. Persisted as the
// tenant_info record.
type Tenant struct {
	SchemaName string `json:"schema_name"`
	Nome       string `json:"nome"`
}

// Valid reports whether the tenant carries a usable schema name.
func (t Tenant) Valid() bool {
	s := strings.TrimSpace(t.SchemaName)
	return s != "" && !strings.ContainsAny(s, " \t\r\n")
}

// Label returns the display name, falling back to the schema.
func (t Tenant) Label() string {
	if t.Nome != "" {
		return t.Nome
	}
	return t.SchemaName
}

// =============================================================================
// SNAPSHOT AND EVENTS
// =============================================================================

// Snapshot is a read-only copy of the session for consumers.
type Snapshot struct {
	User        *User   `json:"user"`
	Tenant      *Tenant `json:"tenant"`
	Loading     bool    `json:"loading"`
	WarningOpen bool    `json:"warning_open"`
	Countdown   int     `json:"countdown"`
}

// Authenticated reports whether a user is set.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// EventKind classifies store notifications.
type EventKind int

const (
	// EventChanged covers user, tenant and loading transitions
	EventChanged EventKind = iota
	// EventWarning fires when the warning opens, ticks or closes
	EventWarning
	// EventLoggedOut asks consumers to show the login view
	EventLoggedOut
)

// String returns a string representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventWarning:
		return "warning"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}
