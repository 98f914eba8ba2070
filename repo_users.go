package conduit

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Users is the account repository
type Users interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (r *users) GetByID(ctx context.Context, id int64) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateSelectError(err, map[string]any{"id": id})
	}
	return record, nil
}

func (r *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateSelectError(err, map[string]any{"username": username})
	}
	return record, nil
}

func (r *users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryExternal, "username lookup failed")
	}
	return exists, nil
}

func (r *users) Create(ctx context.Context, record *User) (*User, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *users) Update(ctx context.Context, record *User) (*User, error) {
	return r.UpdateTx(ctx, r.db, record)
}

func (r *users) UpdateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if _, err := tx.NewUpdate().
		Model(record).
		Column("username", "bio", "profileImageUrl").
		WherePK().
		Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// NewRecordNotFound builds the repository-level not-found error.
func NewRecordNotFound() *errors.Error {
	return errors.New("record not found", errors.CategoryNotFound).
		WithTextCode("RECORD_NOT_FOUND").
		WithCode(errors.CodeNotFound)
}

// IsRecordNotFound reports whether err represents a missing row.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryNotFound
	}
	return false
}

// UniqueViolationColumn extracts the column name from a SQLite uniqueness
// constraint failure, e.g. "UNIQUE constraint failed: User.username". The
// store's constraints are the real uniqueness guarantee; pre-insert checks in
// the service are only a best-effort courtesy, so concurrent registrations
// surface here and get mapped to the same validation errors.
func UniqueViolationColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	const marker = "UNIQUE constraint failed: "
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}

	target := msg[idx+len(marker):]
	if end := strings.IndexAny(target, ", ;"); end > 0 {
		target = target[:end]
	}
	if dot := strings.LastIndex(target, "."); dot >= 0 {
		target = target[dot+1:]
	}
	return target, target != ""
}

func translateSelectError(err error, metadata map[string]any) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return NewRecordNotFound().WithMetadata(metadata)
	}
	return errors.Wrap(err, errors.CategoryExternal, "query failed")
}
