package signin

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// DefaultMinPasswordLength applies when Config.MinPasswordLength is not set
const DefaultMinPasswordLength = 6

// FieldErrors maps a field name to its messages, in rule order.
type FieldErrors map[string][]string

// First returns the first message reported for field.
func (f FieldErrors) First(field string) string {
	if msgs := f[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Has reports whether field has at least one message.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// ValidationOutcome is either Valid with the credentials to use, or Invalid
// with the field errors and the single message selected for display.
type ValidationOutcome struct {
	Valid       bool
	Credentials Credentials
	Errors      FieldErrors
	Field       string
	Message     string
}

// Valid builds a successful outcome.
func Valid(creds Credentials) ValidationOutcome {
	return ValidationOutcome{Valid: true, Credentials: creds}
}

// Invalid builds a failed outcome.
func Invalid(errs FieldErrors) ValidationOutcome {
	if errs == nil {
		errs = FieldErrors{}
	}
	return ValidationOutcome{Errors: errs}
}

// Classification returns the ValidationError for a failed outcome.
func (o ValidationOutcome) Classification() ErrorClassification {
	if o.Valid {
		return ErrorClassification{}
	}
	return ValidationError(o.Field, o.Message)
}

// Schema checks credentials. Field level failures should be reported as
// ozzo validation.Errors, anything else is treated as a schema failure.
type Schema interface {
	Validate(creds Credentials) error
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc func(creds Credentials) error

// Validate implements Schema.
func (f SchemaFunc) Validate(creds Credentials) error {
	return f(creds)
}

// SchemaFactory builds the rules for the current config and locale.
type SchemaFactory func(ctx context.Context, cfg *Config, t Translator) Schema

// EmailFormSchema is the default SchemaFactory.
func EmailFormSchema(ctx context.Context, cfg *Config, t Translator) Schema {
	minLength := DefaultMinPasswordLength
	if cfg != nil && cfg.MinPasswordLength > 0 {
		minLength = cfg.MinPasswordLength
	}

	return emailFormSchema{
		minPasswordLength: minLength,
		invalidEmail:      t.Translate(ctx, NamespaceErrors, KeyInvalidEmail),
		weakPassword:      t.Translate(ctx, NamespaceErrors, KeyWeakPassword),
	}
}

type emailFormSchema struct {
	minPasswordLength int
	invalidEmail      string
	weakPassword      string
}

func (s emailFormSchema) Validate(creds Credentials) error {
	return validation.ValidateStruct(&creds,
		validation.Field(
			&creds.Email,
			validation.Required.Error(s.invalidEmail),
			is.EmailFormat.Error(s.invalidEmail),
		),
		validation.Field(
			&creds.Password,
			validation.Required.Error(s.weakPassword),
			validation.Length(s.minPasswordLength, 0).Error(s.weakPassword),
		),
	)
}

// Validator runs the schema and picks the one message to report.
type Validator struct {
	schema SchemaFactory
	logger Logger
}

// NewValidator returns a Validator, a nil factory uses EmailFormSchema.
func NewValidator(schema SchemaFactory, logger Logger) *Validator {
	if schema == nil {
		schema = EmailFormSchema
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &Validator{schema: schema, logger: logger}
}

// Validate checks raw against the schema built for cfg. It never fails on
// malformed input, that is reported through the outcome. A nil t uses
// KeyTranslator.
func (v *Validator) Validate(ctx context.Context, raw Credentials, cfg *Config, t Translator) ValidationOutcome {
	if t == nil {
		t = KeyTranslator
	}

	err := v.schema(ctx, cfg, t).Validate(raw)
	if err == nil {
		return Valid(raw)
	}

	outcome := Invalid(fieldErrors(err))

	v.logger.Debug("validation errors", "errors", print.MaybePrettyJSON(outcome.Errors))

	switch {
	case outcome.Errors.Has(FieldEmail):
		outcome.Field = FieldEmail
		outcome.Message = firstOr(outcome.Errors.First(FieldEmail), "Email is required")
	case outcome.Errors.Has(FieldPassword):
		outcome.Field = FieldPassword
		outcome.Message = firstOr(outcome.Errors.First(FieldPassword), "Password is required")
	default:
		outcome.Message = t.Translate(ctx, NamespaceErrors, KeyUnknownError)
	}

	return outcome
}

func fieldErrors(err error) FieldErrors {
	errs := FieldErrors{}

	richErr := goerrors.FromOzzoValidation(err, "invalid credentials")
	if richErr == nil {
		return errs
	}

	for _, fe := range richErr.ValidationErrors {
		errs[fe.Field] = append(errs[fe.Field], fe.Message)
	}

	return errs
}

func firstOr(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}
