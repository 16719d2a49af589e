package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the transaction manager
// the orchestrator runs multi-step mutations through.
type RepositoryManager interface {
	Principals() Principals
	AuditRecorder() Recorder
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	db         *bun.DB
	principals Principals
	recorder   Recorder
}

// NewRepositoryManager wires the default repositories over one database.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		principals: NewPrincipalsRepository(db),
		recorder:   NewAuditRecorder(db),
	}
}

func (m mngr) Validate() error {
	if m.principals == nil {
		return errors.New("repository principals should be initialized")
	}

	if m.recorder == nil {
		return errors.New("audit recorder should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Principals() Principals {
	return m.principals
}

func (m mngr) AuditRecorder() Recorder {
	return m.recorder
}
