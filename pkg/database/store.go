package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kindnest/kindnest-api/pkg/apperr"
)

// Store wraps the database with the queries the services need. All methods
// take a context; use InTx to group several into one transaction.
type Store struct{ DB *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) db(ctx context.Context) *gorm.DB { return s.DB.WithContext(ctx) }

// InTx runs fn against a Store bound to a single transaction. Returning an
// error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

// translate maps gorm errors onto apperr kinds.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &apperr.Error{Kind: apperr.KindConflict, Msg: what + " already exists", Err: err}
	default:
		return err
	}
}
