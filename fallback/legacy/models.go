package legacy

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is a credential kept from the system we are migrating away from.
// PasswordHash must be bcrypt.
type Account struct {
	bun.BaseModel `bun:"table:legacy_accounts,alias:lac"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	MigratedAt    *time.Time `bun:"migrated_at" json:"migrated_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsMigrated reports whether the account was already moved to the primary store
func (a *Account) IsMigrated() bool {
	return a.MigratedAt != nil
}

// CreateSchema creates the legacy_accounts table if missing
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create legacy_accounts table")
	}
	return nil
}
