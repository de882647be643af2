package local

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account store used by Backend
type Users interface {
	repository.Repository[*User]

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository returns a Users store backed by db
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.Repository.GetByIdentifierTx(ctx, tx, NormalizeEmail(identifier), criteria...)
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	// NOTE: the ORM update omits zero values, so login_attempts would never
	// go back to 0.
	loggedInAt := a.now()
	_, err := tx.NewRaw(`
		UPDATE "users"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			"id" = ?;
	`, loggedInAt, user.ID).Exec(ctx)

	if err == nil {
		user.LoggedInAt = &loggedInAt
		user.LoginAttempts = 0
		user.LoginAttemptAt = nil
	}

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	attemptedAt := a.now()
	attempts := user.LoginAttempts + 1

	_, err := tx.NewRaw(`
		UPDATE "users"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			"id" = ?;
	`, attempts, attemptedAt, user.ID).Exec(ctx)

	if err == nil {
		user.LoginAttempts = attempts
		user.LoginAttemptAt = &attemptedAt
	}

	return err
}

// NormalizeEmail trims and lowercases email, accounts are stored that way
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)
	record.ensureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
