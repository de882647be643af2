package signin

// AuthAttemptState is scoped to a single submission. FallbackUsed only ever
// goes from false to true. An empty LastError means there is nothing to show.
type AuthAttemptState struct {
	FallbackUsed bool   `json:"fallback_used"`
	LastError    string `json:"last_error,omitempty"`
}

// NewAuthAttemptState returns the state every submission starts with.
func NewAuthAttemptState() *AuthAttemptState {
	return &AuthAttemptState{}
}

// Fail records the message the presentation layer should display.
func (s *AuthAttemptState) Fail(message string) {
	s.LastError = message
}

// Clear drops any message from a previous step.
func (s *AuthAttemptState) Clear() {
	s.LastError = ""
}

// latchFallback marks the fallback as used and reports whether it was free.
func (s *AuthAttemptState) latchFallback() bool {
	if s.FallbackUsed {
		return false
	}
	s.FallbackUsed = true
	return true
}
