package conduit

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Users() Users
	Credentials() Credentials
	Tags() Tags
	Follows() Follows
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Validate() error
	MustValidate()
}

type mngr struct {
	db          *bun.DB
	users       Users
	credentials Credentials
	tags        Tags
	follows     Follows
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		users:       NewUsersRepository(db),
		credentials: NewCredentialsRepository(db),
		tags:        NewTagsRepository(db),
		follows:     NewFollowsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return stderrors.New("repository users should be initialized")
	}

	if m.credentials == nil {
		return stderrors.New("repository credentials should be initialized")
	}

	if m.tags == nil {
		return stderrors.New("repository tags should be initialized")
	}

	if m.follows == nil {
		return stderrors.New("repository follows should be initialized")
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

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Credentials() Credentials {
	return m.credentials
}

func (m mngr) Tags() Tags {
	return m.tags
}

func (m mngr) Follows() Follows {
	return m.follows
}
