package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the principal's global role
type Role string

const (
	// RolePublic is an unprivileged account (i.e. browse, save searches)
	RolePublic Role = "public"
	// RoleAgent can manage the listings it owns
	RoleAgent Role = "agent"
	// RoleLandlord can manage the properties and listings it owns
	RoleLandlord Role = "landlord"
	// RoleAdmin can manage any account, listing, and approval queue
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RolePublic, RoleAgent, RoleLandlord, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// AllRoles returns the predefined roles
func AllRoles() []Role {
	return []Role{RolePublic, RoleAgent, RoleLandlord, RoleAdmin}
}

// Status is the principal's lifecycle status
type Status string

const (
	// StatusPending marks a self-registered account awaiting review
	StatusPending Status = "pending_verification"
	// StatusActive marks a fully usable account
	StatusActive Status = "active"
	// StatusSuspended marks an account blocked from logging in
	StatusSuspended Status = "suspended"
)

// IsValid checks if the status is one of the predefined lifecycle statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into a Status type
func ParseStatus(statusStr string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(statusStr)))
	return status, status.IsValid()
}

// Principal is the account identity model
type Principal struct {
	bun.BaseModel   `bun:"table:principals,alias:prn"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash    string     `bun:"password_hash,nullzero" json:"password_hash,omitempty"`
	Role            Role       `bun:"role,notnull" json:"role,omitempty"`
	Status          Status     `bun:"status,notnull" json:"status,omitempty"`
	FirstName       string     `bun:"first_name" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name" json:"last_name,omitempty"`
	Phone           string     `bun:"phone_number" json:"phone_number,omitempty"`
	Provider        string     `bun:"provider" json:"provider,omitempty"`
	ProviderSubject string     `bun:"provider_subject" json:"provider_subject,omitempty"`
	EmailVerifiedAt *time.Time `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	LoginAttempts   int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt  *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LastLoginAt     *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	SuspendedAt     *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills rows created before lifecycle statuses existed.
func (p *Principal) EnsureStatus() {
	if p.Status == "" {
		p.Status = StatusActive
	}
}

// IsSuspended reports whether the principal is blocked from logging in.
func (p *Principal) IsSuspended() bool {
	return p.Status == StatusSuspended
}

// IsPending reports whether the principal awaits administrative review.
func (p *Principal) IsPending() bool {
	return p.Status == StatusPending
}

// HasVerifiedEmail reports whether the principal's email address is verified.
func (p *Principal) HasVerifiedEmail() bool {
	return p.EmailVerifiedAt != nil
}

// Sanitized returns a copy safe to hand to transport layers: the password
// hash and throttling counters never leave the orchestrator.
func (p *Principal) Sanitized() *Principal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PasswordHash = ""
	clone.LoginAttempts = 0
	clone.LoginAttemptAt = nil
	return &clone
}

// AnonymizedEmail is the replacement address used on deactivation. The row
// is never removed so audit references stay resolvable.
func (p *Principal) AnonymizedEmail() string {
	return fmt.Sprintf("deactivated-%s@anonymized.invalid", p.ID)
}

// NormalizeEmail lowercases and trims an email identifier so lookups and
// uniqueness checks agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
