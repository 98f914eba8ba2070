package conduit

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Tags lists the article tags known to the store.
type Tags interface {
	List(ctx context.Context) ([]string, error)
}

type tags struct {
	db *bun.DB
}

var _ Tags = (*tags)(nil)

func NewTagsRepository(db *bun.DB) Tags {
	return &tags{db: db}
}

func (r *tags) List(ctx context.Context) ([]string, error) {
	var records []Tag
	if err := r.db.NewSelect().
		Model(&records).
		Column("id", "name").
		Order("id ASC").
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "tag listing failed")
	}

	names := make([]string, 0, len(records))
	for _, tag := range records {
		names = append(names, tag.Name)
	}
	return names, nil
}
