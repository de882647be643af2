package legacy

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/provider/local"
)

// Importer moves a verified account into the primary identity store
type Importer interface {
	ImportUser(ctx context.Context, email, passwordHash string) error
}

// Verifier checks credentials against the legacy store and, on a match,
// imports the account so the next primary sign-in succeeds.
type Verifier struct {
	accounts Accounts
	importer Importer
	logger   signin.Logger
}

func NewVerifier(accounts Accounts, importer Importer) *Verifier {
	return &Verifier{
		accounts: accounts,
		importer: importer,
		logger:   nopLogger{},
	}
}

func (v *Verifier) WithLogger(logger signin.Logger) *Verifier {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// Fallback returns the verifier as a signin.FallbackFunc
func (v *Verifier) Fallback() signin.FallbackFunc {
	return v.Verify
}

// Verify returns true once the account has been imported. Unknown accounts,
// accounts already migrated and wrong passwords return false with no error.
func (v *Verifier) Verify(ctx context.Context, email, password string) (bool, error) {
	account, err := v.accounts.GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve legacy account")
	}

	if account.IsMigrated() {
		return false, nil
	}

	if err := local.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if goerrors.Is(err, local.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}

	if err := v.importer.ImportUser(ctx, account.Email, account.PasswordHash); err != nil {
		if goerrors.Is(err, local.ErrAccountExists) {
			v.logger.Warn("legacy account already present in primary store", "email", account.Email)
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to import legacy account")
	}

	if err := v.accounts.MarkMigrated(ctx, account); err != nil {
		v.logger.Error("failed to mark legacy account migrated", "email", account.Email, "error", err)
	}

	v.logger.Info("legacy account migrated", "email", account.Email)

	return true, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
