package legacy

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-signin/provider/local"
)

// Accounts is the legacy credential store
type Accounts interface {
	repository.Repository[*Account]

	Add(ctx context.Context, email, passwordHash string) (*Account, error)
	MarkMigrated(ctx context.Context, account *Account) error
	MarkMigratedTx(ctx context.Context, tx bun.IDB, account *Account) error
}

type accounts struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.Repository.GetByIdentifierTx(ctx, a.db, local.NormalizeEmail(identifier), criteria...)
}

// Add stores a legacy credential, email is normalized
func (a *accounts) Add(ctx context.Context, email, passwordHash string) (*Account, error) {
	return a.Repository.Create(ctx, &Account{
		Email:        local.NormalizeEmail(email),
		PasswordHash: passwordHash,
	})
}

func (a *accounts) MarkMigrated(ctx context.Context, account *Account) error {
	return a.MarkMigratedTx(ctx, a.db, account)
}

func (a *accounts) MarkMigratedTx(ctx context.Context, tx bun.IDB, account *Account) error {
	migratedAt := a.now()
	_, err := tx.NewRaw(`
		UPDATE "legacy_accounts"
		SET "migrated_at" = ?
		WHERE "id" = ?;
	`, migratedAt, account.ID).Exec(ctx)

	if err == nil {
		account.MigratedAt = &migratedAt
	}

	return err
}
