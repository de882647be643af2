package local

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateSchema creates the tables used by the local backend. It is safe to
// call on an existing database.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}
