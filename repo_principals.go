package identity

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updatePrincipalStatusSQL = `UPDATE "principals" AS "prn"
SET
	"status" = ?,
	"suspended_at" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

var deactivatePrincipalSQL = `UPDATE "principals" AS "prn"
SET
	"status" = ?,
	"email" = ?,
	"suspended_at" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

// StatusUpdateOption customizes a status update.
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	suspendedAt *time.Time
}

// WithSuspendedAt records (or clears, when nil) the suspension timestamp
// alongside the status change.
func WithSuspendedAt(t *time.Time) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.suspendedAt = t
	}
}

// Principals is the repository surface for principal records.
type Principals interface {
	repository.Repository[*Principal]

	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error)

	Create(ctx context.Context, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error)

	TrackAttemptedLogin(ctx context.Context, principal *Principal) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error
	TrackSuccessfulLogin(ctx context.Context, principal *Principal) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Principal, error)

	Deactivate(ctx context.Context, id uuid.UUID) (*Principal, error)
	DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Principal, error)
}

type principals struct {
	repository.Repository[*Principal]
	db *bun.DB
}

var (
	_ Principals                        = (*principals)(nil)
	_ repository.Repository[*Principal] = (*principals)(nil)
	_ PrincipalStore                    = (*principals)(nil)
)

// NewPrincipalsRepository builds the bun-backed principal repository.
func NewPrincipalsRepository(db *bun.DB) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &principals{
		Repository: repo,
		db:         db,
	}
}

func (a *principals) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *principals) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error) {
	record := &Principal{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": NormalizeEmail(email)})
		}
		return nil, err
	}

	record.EnsureStatus()
	return record, nil
}

func (a *principals) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*Principal, error) {
	record, err := a.Repository.GetByID(ctx, id, criteria...)
	if err != nil {
		return nil, err
	}
	record.EnsureStatus()
	return record, nil
}

func (a *principals) Create(ctx context.Context, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *principals) CreateTx(ctx context.Context, tx bun.IDB, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	prepareDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *principals) TrackAttemptedLogin(ctx context.Context, principal *Principal) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, principal)
}

func (a *principals) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error {
	// NOTE: raw SQL so only the counters change, independent of how the
	// ORM update path treats the record's zero-valued columns.
	now := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "principals" AS "prn"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			("prn".id = ?)
			AND "prn"."deleted_at" IS NULL;
	`, principal.LoginAttempts+1, now, principal.ID).Exec(ctx)

	return err
}

func (a *principals) TrackSuccessfulLogin(ctx context.Context, principal *Principal) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, principal)
}

func (a *principals) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error {
	// NOTE: the ORM update path will not reset login_attempt_at and
	// login_attempts to their zero values, so this stays raw SQL.
	lastLoginAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "principals" AS "prn"
		SET
			"last_login_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("prn".id = ?)
			AND "prn"."deleted_at" IS NULL;
	`, lastLoginAt, principal.ID).Exec(ctx)

	return err
}

func (a *principals) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *principals) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error) {
	update := &statusUpdate{}
	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	res, err := a.Repository.RawTx(ctx, tx, updatePrincipalStatusSQL,
		string(status), update.suspendedAt, time.Now(), id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *principals) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Principal, error) {
	record := &Principal{}
	record.ID = id
	record.Role = role

	return a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))
}

func (a *principals) Deactivate(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return a.DeactivateTx(ctx, a.db, id)
}

// DeactivateTx retires an account: a status transition plus email
// anonymization. Rows are never removed.
func (a *principals) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Principal, error) {
	now := time.Now()
	placeholder := &Principal{ID: id}

	res, err := a.Repository.RawTx(ctx, tx, deactivatePrincipalSQL,
		string(StatusSuspended), placeholder.AnonymizedEmail(), now, now, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func prepareDefaults(record *Principal) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RolePublic
	}

	record.EnsureStatus()
}
