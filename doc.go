// Package signin implements an email/password sign-in form pipeline: input
// validation, a primary IdentityBackend, and an optional once-per-submission
// fallback check.
//
// Submissions:
//   - EmailPasswordForm.Submit runs one submission through the states idle,
//     validating, authenticating, fallback_pending and settled. It always
//     settles and reports the outcome through a SubmitResult whose
//     AuthAttemptState carries the message to show the user.
//   - Observers registered with Subscribe or WithObserver receive every
//     Transition synchronously. The metrics package exports them to Prometheus.
//
// Backends:
//   - IdentityBackend failures carry a stable code (see NewAuthError). Only
//     user-not-found and invalid-credential make a fallback eligible.
//   - provider/local stores accounts with Bun, provider/identitytoolkit talks to
//     the Identity Toolkit REST API, and throttle wraps either with a redis
//     backed failure counter.
//
// Fallback:
//   - FallbackFunc approves credentials the primary backend rejected. Approval
//     only authorizes a second primary sign-in. fallback/legacy verifies
//     against a legacy credential table and imports the account.
//
// Translations:
//   - Every user facing string goes through a Translator keyed by namespace
//     and key. The i18n package ships en-us and fr-ca catalogs, Config.Translations
//     overrides individual strings.
package signin
