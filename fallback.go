package signin

import (
	"context"
)

// FallbackCoordinator gives a failed sign-in one more chance through a caller
// supplied check. It runs at most once per AuthAttemptState.
type FallbackCoordinator struct {
	backend  IdentityBackend
	fallback FallbackFunc
	logger   Logger
}

// NewFallbackCoordinator returns a coordinator, fallback may be nil.
func NewFallbackCoordinator(backend IdentityBackend, fallback FallbackFunc, logger Logger) *FallbackCoordinator {
	if logger == nil {
		logger = defLogger{}
	}
	return &FallbackCoordinator{
		backend:  backend,
		fallback: fallback,
		logger:   logger,
	}
}

// Enabled reports whether a fallback func was configured.
func (c *FallbackCoordinator) Enabled() bool {
	return c != nil && c.fallback != nil
}

// Eligible reports whether err allows a fallback for the given state.
func (c *FallbackCoordinator) Eligible(err error, state *AuthAttemptState) bool {
	if !c.Enabled() || state == nil || state.FallbackUsed {
		return false
	}

	classification := Classify(err)
	if !classification.IsRecoverable() {
		return false
	}

	return IsFallbackCode(classification.Code)
}

// TryFallback runs the fallback for err and, if it approves the credentials,
// signs in again through the primary backend. It returns the session and true
// only when the second sign-in succeeded. Errors never escape: a failing
// fallback or a failing second sign-in both report false.
func (c *FallbackCoordinator) TryFallback(ctx context.Context, cfg *Config, creds Credentials, err error, state *AuthAttemptState) (*Session, bool) {
	if !c.Eligible(err, state) {
		return nil, false
	}

	if !state.latchFallback() {
		return nil, false
	}

	ok, ferr := c.fallback(ctx, creds.Email, creds.Password)
	if ferr != nil {
		c.logger.Error("fallback auth failed", "error", ferr)
		return nil, false
	}

	if !ok {
		c.logger.Debug("fallback auth rejected credentials")
		return nil, false
	}

	session, serr := c.backend.SignIn(WithFallbackSignIn(ctx), cfg, creds.Email, creds.Password)
	if serr != nil {
		c.logger.Error("sign in after fallback failed", "error", serr)
		return nil, false
	}

	return session, true
}
