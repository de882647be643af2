package signin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

// SubmitResult is what a submission settles with.
type SubmitResult struct {
	State          SubmissionState     `json:"state"`
	Outcome        ValidationOutcome   `json:"-"`
	Attempt        AuthAttemptState    `json:"attempt"`
	Classification ErrorClassification `json:"classification"`
	Session        *Session            `json:"session,omitempty"`
	// Detail is the translated message for the backend code. The form shows
	// Attempt.LastError, API clients may prefer Detail.
	Detail string `json:"detail,omitempty"`
}

// Succeeded reports whether a session was established.
func (r *SubmitResult) Succeeded() bool {
	return r != nil && r.Session != nil && r.Classification.Kind == ErrorKindNone
}

// SubmitMessage runs a submission through the command bus.
type SubmitMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OnResult func(*SubmitResult)
}

func (m SubmitMessage) Type() string { return "signin.submit" }

// Validate only checks the message is routable, credential rules belong to
// the form schema.
func (m SubmitMessage) Validate() error {
	if m.OnResult == nil {
		return goerrors.New("sign-in message requires a result callback", goerrors.CategoryBadInput).
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// Credentials returns the raw values carried by the message.
func (m SubmitMessage) Credentials() Credentials {
	return Credentials{Email: m.Email, Password: m.Password}
}

var _ command.Commander[SubmitMessage] = (*EmailPasswordForm)(nil)

// EmailPasswordForm runs the sign-in submission pipeline:
// validation, primary sign-in and the optional fallback.
type EmailPasswordForm struct {
	backend      IdentityBackend
	source       ConfigSource
	translators  TranslatorProvider
	schema       SchemaFactory
	fallback     FallbackFunc
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time

	mu  sync.Mutex
	cfg *Config

	obsMu     sync.RWMutex
	observers []observerEntry
	nextObsID int
}

type observerEntry struct {
	id       int
	observer Observer
}

// NewEmailPasswordForm returns a form that signs in against backend and loads
// its configuration from source.
func NewEmailPasswordForm(backend IdentityBackend, source ConfigSource) *EmailPasswordForm {
	return &EmailPasswordForm{
		backend:      backend,
		source:       source,
		schema:       EmailFormSchema,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (f *EmailPasswordForm) WithLogger(logger Logger) *EmailPasswordForm {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithFallback sets the secondary credential check. nil disables it.
func (f *EmailPasswordForm) WithFallback(fn FallbackFunc) *EmailPasswordForm {
	f.fallback = fn
	return f
}

// WithTranslatorProvider sets how translators are bound to the config.
func (f *EmailPasswordForm) WithTranslatorProvider(p TranslatorProvider) *EmailPasswordForm {
	f.translators = p
	return f
}

// WithSchemaFactory replaces the default email form rules.
func (f *EmailPasswordForm) WithSchemaFactory(s SchemaFactory) *EmailPasswordForm {
	if s != nil {
		f.schema = s
	}
	return f
}

// WithActivitySink configures an ActivitySink for emitting sign-in events.
func (f *EmailPasswordForm) WithActivitySink(sink ActivitySink) *EmailPasswordForm {
	f.activitySink = normalizeActivitySink(sink)
	return f
}

// WithObserver registers an observer for the lifetime of the form.
func (f *EmailPasswordForm) WithObserver(o Observer) *EmailPasswordForm {
	f.Subscribe(o)
	return f
}

// WithClock injects a custom clock (useful for tests).
func (f *EmailPasswordForm) WithClock(now func() time.Time) *EmailPasswordForm {
	if now != nil {
		f.now = now
	}
	return f
}

// Subscribe registers o and returns a function that removes it.
func (f *EmailPasswordForm) Subscribe(o Observer) func() {
	if o == nil {
		return func() {}
	}

	f.obsMu.Lock()
	id := f.nextObsID
	f.nextObsID++
	f.observers = append(f.observers, observerEntry{id: id, observer: o})
	f.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.obsMu.Lock()
			defer f.obsMu.Unlock()
			for i, entry := range f.observers {
				if entry.id == id {
					f.observers = append(f.observers[:i:i], f.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Translator returns the translator bound to the current config. If the
// config cannot be loaded the default locale is used.
func (f *EmailPasswordForm) Translator(ctx context.Context) Translator {
	cfg, err := f.loadConfig(ctx)
	if err != nil {
		f.logger.Warn("using default translator", "error", err)
		return f.translatorFor(nil)
	}
	return f.translatorFor(cfg)
}

// Execute implements command.Commander.
func (f *EmailPasswordForm) Execute(ctx context.Context, msg SubmitMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign-in",
		)
	default:
	}

	msg.OnResult(f.Submit(ctx, msg.Credentials()))
	return nil
}

// Submit runs one submission to completion. It always settles, errors are
// reported through the result and its AuthAttemptState.
func (f *EmailPasswordForm) Submit(ctx context.Context, raw Credentials) (result *SubmitResult) {
	started := f.now()
	attempt := NewAuthAttemptState()
	result = &SubmitResult{State: StateIdle}

	sub := &submission{
		state:   StateIdle,
		attempt: attempt,
		started: started,
		now:     f.now,
		publish: f.publish,
		logger:  f.logger,
	}

	var t Translator = KeyTranslator

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("sign-in submission panicked", "panic", fmt.Sprint(r))
			attempt.Fail(t.Translate(ctx, NamespaceErrors, KeyUnknownError))
			c := UnknownError()
			c.Message = attempt.LastError
			result.Session = nil
			result.Classification = c
			sub.settle(ctx, c)
		}
		result.State = sub.state
		result.Attempt = *attempt
		f.logger.Debug("sign-in settled", "kind", result.Classification.Kind, "duration", f.now().Sub(started))
	}()

	cfg, err := f.loadConfig(ctx)
	if err != nil {
		t = f.translatorFor(nil)
		f.logger.Error("failed to load sign-in config", "error", err)
		attempt.Fail(t.Translate(ctx, NamespaceErrors, KeyUnknownError))
		result.Classification = UnknownError()
		result.Classification.Message = attempt.LastError
		sub.settle(ctx, result.Classification)
		return result
	}
	t = f.translatorFor(cfg)

	sub.moveTo(ctx, StateValidating)

	validator := NewValidator(f.schema, f.logger)
	result.Outcome = validator.Validate(ctx, raw, cfg, t)
	if !result.Outcome.Valid {
		attempt.Fail(result.Outcome.Message)
		result.Classification = result.Outcome.Classification()
		sub.settle(ctx, result.Classification)
		return result
	}

	attempt.Clear()
	sub.moveTo(ctx, StateAuthenticating)

	creds := result.Outcome.Credentials
	session, err := f.backend.SignIn(ctx, cfg, creds.Email, creds.Password)
	if err == nil {
		return f.succeed(ctx, sub, result, creds, session, false)
	}

	classification := Classify(err)
	f.logger.Debug("primary sign-in failed", "kind", classification.Kind, "code", classification.Code)

	coordinator := NewFallbackCoordinator(f.backend, f.fallback, f.logger)
	if coordinator.Eligible(err, attempt) {
		sub.moveTo(ctx, StateFallbackPending)
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventFallbackAttempted,
			Email:     creds.Email,
			Code:      classification.Code,
		})

		if session, ok := coordinator.TryFallback(ctx, cfg, creds, err, attempt); ok {
			return f.succeed(ctx, sub, result, creds, session, true)
		}
	}

	attempt.Fail(t.Translate(ctx, NamespaceErrors, KeyWrongPassword))
	classification.Message = attempt.LastError
	result.Classification = classification
	result.Detail = t.Translate(ctx, NamespaceErrors, KeyFor(classification.Code))
	sub.settle(ctx, classification)

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventSignInFailure,
		Email:     creds.Email,
		Kind:      classification.Kind,
		Code:      classification.Code,
		Metadata:  map[string]any{"fallback_used": attempt.FallbackUsed},
	})

	return result
}

func (f *EmailPasswordForm) succeed(ctx context.Context, sub *submission, result *SubmitResult, creds Credentials, session *Session, viaFallback bool) *SubmitResult {
	if session == nil {
		session = &Session{Email: creds.Email, IssuedAt: f.now()}
	}

	result.Session = session
	sub.settle(ctx, ErrorClassification{})

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		Email:     creds.Email,
		UserID:    session.UserID,
		Metadata:  map[string]any{"fallback": viaFallback},
	})

	return result
}

// loadConfig returns the cached config or loads it. Failures are not cached.
func (f *EmailPasswordForm) loadConfig(ctx context.Context) (*Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg != nil {
		return f.cfg, nil
	}

	if f.source == nil {
		return nil, ErrConfigUnavailable
	}

	cfg, err := f.source.Config(ctx)
	if err != nil {
		if goerrors.Is(err, ErrConfigUnavailable) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load sign-in config").
			WithTextCode(TextCodeConfigUnavailable)
	}

	if cfg == nil {
		return nil, ErrConfigUnavailable
	}

	f.cfg = cfg
	return cfg, nil
}

func (f *EmailPasswordForm) translatorFor(cfg *Config) Translator {
	var t Translator = KeyTranslator
	if f.translators != nil {
		if bound := f.translators(cfg); bound != nil {
			t = bound
		}
	}
	return WithOverrides(cfg, t)
}

func (f *EmailPasswordForm) publish(ctx context.Context, t Transition) {
	f.obsMu.RLock()
	observers := make([]Observer, 0, len(f.observers))
	for _, entry := range f.observers {
		observers = append(observers, entry.observer)
	}
	f.obsMu.RUnlock()

	for _, o := range observers {
		f.notify(ctx, o, t)
	}
}

// notify keeps a panicking observer from changing the submission outcome.
func (f *EmailPasswordForm) notify(ctx context.Context, o Observer, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("sign-in observer panicked", "to", t.To, "panic", fmt.Sprint(r))
		}
	}()
	o.OnTransition(ctx, t)
}

func (f *EmailPasswordForm) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = f.now()
	}
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))

	if err := f.activitySink.Record(ctx, event); err != nil {
		f.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
