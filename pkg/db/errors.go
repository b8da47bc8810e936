package db

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. On Postgres the
// constraint name is matched when provided; sqlite does not report index names, so any
// unique failure matches there.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}

// IsNotFound reports whether err is GORM's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// StoreError passes typed errors through and classifies anything else as a store failure.
func StoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, op+": request abandoned")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, op+": timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, op)
}
