package signin

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind tags an ErrorClassification.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindRecoverableAuth   ErrorKind = "recoverable_auth"
	ErrorKindUnrecoverableAuth ErrorKind = "unrecoverable_auth"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// ErrorClassification describes why a submission did not succeed.
// Field and Message are set for validation errors, Code for auth errors.
type ErrorClassification struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// fallbackCodes are the only backend codes that make a fallback eligible
var fallbackCodes = map[string]struct{}{
	CodeUserNotFound:      {},
	CodeInvalidCredential: {},
}

// IsFallbackCode reports whether code allows the fallback coordinator to run.
func IsFallbackCode(code string) bool {
	_, ok := fallbackCodes[code]
	return ok
}

func ValidationError(field, message string) ErrorClassification {
	return ErrorClassification{Kind: ErrorKindValidation, Field: field, Message: message}
}

func RecoverableAuthError(code string) ErrorClassification {
	return ErrorClassification{Kind: ErrorKindRecoverableAuth, Code: code}
}

func UnrecoverableAuthError() ErrorClassification {
	return ErrorClassification{Kind: ErrorKindUnrecoverableAuth}
}

func UnknownError() ErrorClassification {
	return ErrorClassification{Kind: ErrorKindUnknown}
}

// IsRecoverable is true for auth errors that carry a backend code.
func (c ErrorClassification) IsRecoverable() bool {
	return c.Kind == ErrorKindRecoverableAuth
}

// Classify maps an error returned by a collaborator to an ErrorClassification.
func Classify(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}

	if IsNetworkError(err) {
		c := UnrecoverableAuthError()
		if code, ok := AuthErrorCode(err); ok {
			c.Code = code
		}
		return c
	}

	if code, ok := AuthErrorCode(err); ok {
		return RecoverableAuthError(code)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			c := ErrorClassification{Kind: ErrorKindValidation, Message: richErr.Message}
			if len(richErr.ValidationErrors) > 0 {
				c.Field = richErr.ValidationErrors[0].Field
				c.Message = richErr.ValidationErrors[0].Message
			}
			return c
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryRateLimit:
			return UnrecoverableAuthError()
		}
	}

	return UnknownError()
}
