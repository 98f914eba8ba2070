package conduit

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Credentials is the email/password-hash repository. Rows are created
// atomically with their owning account at registration.
type Credentials interface {
	GetByEmail(ctx context.Context, email string) (*Auth, error)
	GetByUserID(ctx context.Context, userID int64) (*Auth, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Auth) (*Auth, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Auth) (*Auth, error)
}

type credentials struct {
	db *bun.DB
}

var _ Credentials = (*credentials)(nil)

func NewCredentialsRepository(db *bun.DB) Credentials {
	return &credentials{db: db}
}

// GetByEmail loads a credential joined with its account, the login lookup.
func (r *credentials) GetByEmail(ctx context.Context, email string) (*Auth, error) {
	record := &Auth{}
	err := r.db.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateSelectError(err, map[string]any{"email": email})
	}
	return record, nil
}

func (r *credentials) GetByUserID(ctx context.Context, userID int64) (*Auth, error) {
	record := &Auth{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.userId = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateSelectError(err, map[string]any{"user_id": userID})
	}
	return record, nil
}

func (r *credentials) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Auth)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryExternal, "email lookup failed")
	}
	return exists, nil
}

func (r *credentials) CreateTx(ctx context.Context, tx bun.IDB, record *Auth) (*Auth, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *credentials) UpdateTx(ctx context.Context, tx bun.IDB, record *Auth) (*Auth, error) {
	if _, err := tx.NewUpdate().
		Model(record).
		Column("email", "passwordHash").
		Where("?TableAlias.userId = ?", record.UserID).
		Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}
