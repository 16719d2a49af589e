package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditAction enumerates the supported audit classifications.
type AuditAction string

const (
	AuditActionCreate    AuditAction = "CREATE"
	AuditActionUpdate    AuditAction = "UPDATE"
	AuditActionDelete    AuditAction = "DELETE"
	AuditActionApproval  AuditAction = "APPROVAL"
	AuditActionRejection AuditAction = "REJECTION"
	AuditActionView      AuditAction = "VIEW"
)

// IsValid checks if the action is one of the predefined classifications
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete,
		AuditActionApproval, AuditActionRejection, AuditActionView:
		return true
	default:
		return false
	}
}

// AuditEntry is an immutable record of a privileged state-changing action.
// Entries are append-only: nothing in this package updates or deletes one
// after creation.
type AuditEntry struct {
	bun.BaseModel     `bun:"table:audit_entries,alias:aud"`
	ID                uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActingPrincipalID uuid.UUID      `bun:"acting_principal_id,notnull,type:uuid" json:"acting_principal_id,omitempty"`
	Action            AuditAction    `bun:"action,notnull" json:"action,omitempty"`
	EntityType        string         `bun:"entity_type,notnull" json:"entity_type,omitempty"`
	EntityID          string         `bun:"entity_id,notnull" json:"entity_id,omitempty"`
	TargetPrincipalID *uuid.UUID     `bun:"target_principal_id,nullzero,type:uuid" json:"target_principal_id,omitempty"`
	OldValues         map[string]any `bun:"old_values,type:jsonb" json:"old_values,omitempty"`
	NewValues         map[string]any `bun:"new_values,type:jsonb" json:"new_values,omitempty"`
	IPAddress         string         `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent         string         `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt         *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RequestMeta carries the transport-level facts an audit entry records about
// where an action came from.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Recorder persists audit entries for privileged mutations.
type Recorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, entry AuditEntry) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, entry AuditEntry) error {
	if f == nil {
		return nil
	}
	return f(ctx, entry)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, AuditEntry) error {
	return nil
}

func normalizeRecorder(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}

// ClassifyStatusChange maps a status transition onto an audit action:
// activating a pending account is an APPROVAL, suspending is a REJECTION,
// anything else an UPDATE. The caller decides whether the heuristic applies
// to its mutation; a multi-field edit that happens to include a status
// change should pass an explicit action instead.
func ClassifyStatusChange(from, to Status) AuditAction {
	switch {
	case from == StatusPending && to == StatusActive:
		return AuditActionApproval
	case to == StatusSuspended:
		return AuditActionRejection
	default:
		return AuditActionUpdate
	}
}

// bunRecorder appends audit entries to the relational store.
type bunRecorder struct {
	db  bun.IDB
	now func() time.Time
}

// RecorderOption customizes recorder construction.
type RecorderOption func(*bunRecorder)

// WithRecorderClock injects a custom clock (useful for tests).
func WithRecorderClock(clock func() time.Time) RecorderOption {
	return func(r *bunRecorder) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewAuditRecorder returns a Recorder backed by the given database.
func NewAuditRecorder(db bun.IDB, opts ...RecorderOption) Recorder {
	r := &bunRecorder{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Record appends one entry. Callers treat failures as best-effort (log and
// continue); the recorder itself still reports them.
func (r *bunRecorder) Record(ctx context.Context, entry AuditEntry) error {
	if !entry.Action.IsValid() {
		return goerrors.New("invalid audit action", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"action": string(entry.Action)})
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt == nil {
		now := r.now()
		entry.CreatedAt = &now
	}

	if _, err := r.db.NewInsert().Model(&entry).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to append audit entry")
	}

	return nil
}

// recordBestEffort appends an entry without letting a failed audit write
// roll back or fail the triggering operation.
func recordBestEffort(ctx context.Context, recorder Recorder, logger Logger, entry AuditEntry) {
	if err := normalizeRecorder(recorder).Record(ctx, entry); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("audit recorder error: %v", err)
	}
}
