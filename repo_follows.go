package conduit

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Follows is the profile follow graph repository.
type Follows interface {
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)
	Follow(ctx context.Context, followerID, followeeID int64) error
	Unfollow(ctx context.Context, followerID, followeeID int64) error
}

type follows struct {
	db *bun.DB
}

var _ Follows = (*follows)(nil)

func NewFollowsRepository(db *bun.DB) Follows {
	return &follows{db: db}
}

func (r *follows) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Follow)(nil)).
		Where("?TableAlias.followerId = ?", followerID).
		Where("?TableAlias.followeeId = ?", followeeID).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryExternal, "follow lookup failed")
	}
	return exists, nil
}

// Follow inserts an edge. Re-following is a no-op, enforced by the unique
// pair constraint rather than a read-then-write.
func (r *follows) Follow(ctx context.Context, followerID, followeeID int64) error {
	record := &Follow{FollowerID: followerID, FolloweeID: followeeID}
	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "follow insert failed")
	}
	return nil
}

// Unfollow removes an edge; removing a missing edge is a no-op.
func (r *follows) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	_, err := r.db.NewDelete().
		Model((*Follow)(nil)).
		Where("?TableAlias.followerId = ?", followerID).
		Where("?TableAlias.followeeId = ?", followeeID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "follow delete failed")
	}
	return nil
}
