package signin

import (
	"context"
	"strings"
)

// Catalog namespaces.
const (
	NamespaceErrors   = "errors"
	NamespaceMessages = "messages"
	NamespaceLabels   = "labels"
	NamespacePrompts  = "prompts"
)

// Catalog keys used by the sign-in form.
const (
	KeyUserNotFound         = "userNotFound"
	KeyWrongPassword        = "wrongPassword"
	KeyInvalidEmail         = "invalidEmail"
	KeyUserDisabled         = "userDisabled"
	KeyNetworkRequestFailed = "networkRequestFailed"
	KeyTooManyRequests      = "tooManyRequests"
	KeyWeakPassword         = "weakPassword"
	KeyUnknownError         = "unknownError"

	KeyEmailAddress   = "emailAddress"
	KeyPassword       = "password"
	KeyForgotPassword = "forgotPassword"
	KeySignIn         = "signIn"
	KeyRegister       = "register"

	KeyNoAccount = "noAccount"
)

// KeyFor returns the errors namespace key that describes a backend code.
// Unknown codes map to KeyUnknownError.
func KeyFor(code string) string {
	switch code {
	case CodeUserNotFound:
		return KeyUserNotFound
	case CodeWrongPassword, CodeInvalidCredential:
		return KeyWrongPassword
	case CodeInvalidEmail:
		return KeyInvalidEmail
	case CodeUserDisabled:
		return KeyUserDisabled
	case CodeTooManyRequests:
		return KeyTooManyRequests
	case CodeNetworkRequestFailed:
		return KeyNetworkRequestFailed
	default:
		return KeyUnknownError
	}
}

// KeyTranslator echoes "namespace.key", it is used when no provider is set
// and keeps tests independent of any catalog.
var KeyTranslator = TranslatorFunc(func(_ context.Context, namespace, key string) string {
	return strings.Join([]string{namespace, key}, ".")
})

// overrideTranslator serves Config.Translations before delegating.
type overrideTranslator struct {
	overrides map[string]map[string]string
	next      Translator
}

func (t overrideTranslator) Translate(ctx context.Context, namespace, key string) string {
	if ns, ok := t.overrides[namespace]; ok {
		if msg, ok := ns[key]; ok && msg != "" {
			return msg
		}
	}
	return t.next.Translate(ctx, namespace, key)
}

// WithOverrides wraps t so cfg.Translations take precedence.
func WithOverrides(cfg *Config, t Translator) Translator {
	if cfg == nil || len(cfg.Translations) == 0 {
		return t
	}
	return overrideTranslator{overrides: cfg.Translations, next: t}
}
