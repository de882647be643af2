package local

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeEmptyPassword      = "EMPTY_PASSWORD"
	textCodeMismatchedPassword = "MISMATCHED_PASSWORD"
	textCodeAccountExists      = "ACCOUNT_EXISTS"
)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(textCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(textCodeMismatchedPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountExists is returned when importing an account that is already stored
var ErrAccountExists = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeAccountExists).
	WithCode(goerrors.CodeConflict)
