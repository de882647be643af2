package local

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Disabled  bool   `json:"disabled"`
	UseHashid bool   `json:"use_hashid"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
		validation.Field(&e.Password, validation.Required),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid user registration")
	}
	return nil
}

// RegisterUserHandler creates accounts in the local store
type RegisterUserHandler struct {
	users    Users
	OnCreate func(*User)
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

func NewRegisterUserHandler(users Users) *RegisterUserHandler {
	return &RegisterUserHandler{users: users}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        NormalizeEmail(event.Email),
		PasswordHash: hash,
	}

	if event.Disabled {
		user.Status = UserStatusDisabled
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	if user, err = h.users.Register(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	if h.OnCreate != nil {
		h.OnCreate(user)
	}

	return nil
}
