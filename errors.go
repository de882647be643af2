package signin

import (
	"context"
	"net"

	goerrors "github.com/goliatone/go-errors"
)

// Identity backend error codes. Backends report them as the TextCode of a
// goerrors.Error in CategoryAuth, see NewAuthError.
const (
	CodeUserNotFound         = "auth/user-not-found"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeWrongPassword        = "auth/wrong-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeUserDisabled         = "auth/user-disabled"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
)

const (
	TextCodeConfigUnavailable = "SIGNIN_CONFIG_UNAVAILABLE"
	TextCodeValidation        = "SIGNIN_VALIDATION_FAILED"
)

// ErrConfigUnavailable is returned when no UI configuration could be loaded
var ErrConfigUnavailable = goerrors.New("sign-in configuration unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeConfigUnavailable).
	WithCode(goerrors.CodeInternal)

// NewAuthError builds the error an IdentityBackend returns for a failed
// sign-in. code should be one of the Code* constants.
func NewAuthError(code, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(code).
		WithCode(goerrors.CodeUnauthorized)
}

// AuthErrorCode returns the backend code carried by err, if any.
func AuthErrorCode(err error) (string, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return "", false
	}

	if richErr.Category != goerrors.CategoryAuth || richErr.TextCode == "" {
		return "", false
	}

	return richErr.TextCode, true
}

// IsNetworkError reports transport level failures: context expiry, net errors,
// and errors classified as external.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if goerrors.Is(err, context.DeadlineExceeded) || goerrors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return true
	}

	if code, ok := AuthErrorCode(err); ok && code == CodeNetworkRequestFailed {
		return true
	}

	return goerrors.HasCategory(err, goerrors.CategoryExternal)
}
