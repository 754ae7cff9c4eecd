package repository

import (
	"context"
	"errors"

	"quote_manager/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is an open database transaction. The zero value is unusable; a Tx is
// only handed out by Transactor.Transact.
type Tx struct {
	db *gorm.DB
}

func (tx Tx) conn() (*gorm.DB, error) {
	if tx.db == nil {
		return nil, errors.New("repository: operation requires an open transaction")
	}
	return tx.db, nil
}

// forUpdate adds a row lock on dialects that support one. SQLite serializes
// writers on its own.
func (tx Tx) forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

type Transactor interface {
	// Transact runs fn inside a single transaction. fn's error rolls the
	// transaction back and is returned; commit failures caused by concurrent
	// writers surface as apperrors.ErrConflictOnSave.
	Transact(ctx context.Context, fn func(tx Tx) error) error
}

type transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &transactor{db: db}
}

func (t *transactor) Transact(ctx context.Context, fn func(tx Tx) error) error {
	err := t.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(Tx{db: gtx})
	})
	return classify(err)
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgForeignKeyViolation  = "23503"
)

// classify maps driver errors onto the apperrors taxonomy. Errors that are
// already classified pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isConflict(err) {
		return apperrors.Conflict(err)
	}
	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
