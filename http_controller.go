package signin

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterSignInRoutes mounts the sign-in pages and the JSON endpoint on app.
func RegisterSignInRoutes[T any](app router.Router[T], form *EmailPasswordForm, opts ...SignInControllerOption) *SignInController {
	controller := NewSignInController(form, opts...)

	app.Get(controller.Routes.SignIn, controller.SignInShow).
		SetName("sign-in.get")

	app.Post(controller.Routes.SignIn, controller.SignInPost).
		SetName("sign-in.post")

	app.Post(controller.Routes.API, controller.SignInAPI).
		SetName("sign-in.api")

	app.Get(controller.Routes.SignOut, controller.SignOut).
		SetName("sign-out.get")

	return controller
}

type SignInControllerRoutes struct {
	SignIn  string
	SignOut string
	API     string
	// Success is where a signed in user is sent
	Success string
	// ForgotPassword and Register are links rendered by the form. An empty
	// Register hides the no-account prompt.
	ForgotPassword string
	Register       string
}

type SignInControllerViews struct {
	SignIn string
}

// SessionCookie configures the cookie that carries the session token
type SessionCookie struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

type SignInController struct {
	Debug        bool
	Logger       Logger
	Form         *EmailPasswordForm
	Routes       *SignInControllerRoutes
	Views        *SignInControllerViews
	Cookie       SessionCookie
	ErrorHandler router.ErrorHandler
}

type SignInControllerOption func(*SignInController) *SignInController

func WithControllerLogger(logger Logger) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes SignInControllerRoutes) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		if routes.SignIn != "" {
			c.Routes.SignIn = routes.SignIn
		}
		if routes.SignOut != "" {
			c.Routes.SignOut = routes.SignOut
		}
		if routes.API != "" {
			c.Routes.API = routes.API
		}
		if routes.Success != "" {
			c.Routes.Success = routes.Success
		}
		if routes.ForgotPassword != "" {
			c.Routes.ForgotPassword = routes.ForgotPassword
		}
		if routes.Register != "" {
			c.Routes.Register = routes.Register
		}
		return c
	}
}

func WithControllerViews(views SignInControllerViews) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		if views.SignIn != "" {
			c.Views.SignIn = views.SignIn
		}
		return c
	}
}

func WithSessionCookie(cookie SessionCookie) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		if cookie.Name != "" {
			c.Cookie = cookie
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithControllerDebug(debug bool) SignInControllerOption {
	return func(c *SignInController) *SignInController {
		c.Debug = debug
		return c
	}
}

func NewSignInController(form *EmailPasswordForm, opts ...SignInControllerOption) *SignInController {
	c := &SignInController{
		Logger:       defLogger{},
		Form:         form,
		ErrorHandler: defaultErrHandler,
		Routes: &SignInControllerRoutes{
			SignIn:  "/signin",
			SignOut: "/signout",
			API:     "/api/signin",
			Success: "/",
		},
		Views: &SignInControllerViews{
			SignIn: "signin",
		},
		Cookie: SessionCookie{
			Name:     "signin_session",
			Path:     "/",
			HTTPOnly: true,
			SameSite: router.CookieSameSiteLaxMode,
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Form == nil {
		panic("Missing EmailPasswordForm in sign-in controller...")
	}

	return c
}

// SignInRequest payload
type SignInRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (r SignInRequest) Credentials() Credentials {
	return Credentials{Email: r.Email, Password: r.Password}
}

func (a *SignInController) SignInShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignIn, a.viewContext(ctx, router.ViewContext{
		"record":       SignInRequest{},
		"field_errors": FieldErrors{},
		"form_error":   "",
	}))
}

func (a *SignInController) SignInPost(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign in parse payload", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	result := a.Form.Submit(ctx.Context(), payload.Credentials())

	if a.Debug {
		fmt.Println("======= SIGN IN ======")
		fmt.Println(print.MaybePrettyJSON(result))
		fmt.Println("======================")
	}

	if !result.Succeeded() {
		return ctx.Status(statusFor(result)).Render(a.Views.SignIn, a.viewContext(ctx, router.ViewContext{
			"record":       SignInRequest{Email: payload.Email},
			"field_errors": result.Outcome.Errors,
			"form_error":   result.Attempt.LastError,
		}))
	}

	a.setSessionCookie(ctx, result.Session)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Signed in",
	}).Redirect(a.Routes.Success, router.StatusSeeOther)
}

// SignInAPI runs a submission for JSON clients and returns the SubmitResult
func (a *SignInController) SignInAPI(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign in api parse payload", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "invalid request body",
		})
	}

	result := a.Form.Submit(ctx.Context(), payload.Credentials())
	if result.Succeeded() {
		a.setSessionCookie(ctx, result.Session)
	}

	return ctx.JSON(statusFor(result), result)
}

func (a *SignInController) SignOut(ctx router.Context) error {
	ctx.Cookie(&router.Cookie{
		Name:     a.Cookie.Name,
		Value:    "",
		Path:     a.Cookie.Path,
		Domain:   a.Cookie.Domain,
		Secure:   a.Cookie.Secure,
		HTTPOnly: a.Cookie.HTTPOnly,
		SameSite: a.Cookie.SameSite,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return ctx.Redirect(a.Routes.SignIn, router.StatusTemporaryRedirect)
}

func (a *SignInController) setSessionCookie(ctx router.Context, session *Session) {
	if session == nil || session.Token == "" {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     a.Cookie.Name,
		Value:    session.Token,
		Path:     a.Cookie.Path,
		Domain:   a.Cookie.Domain,
		Secure:   a.Cookie.Secure,
		HTTPOnly: a.Cookie.HTTPOnly,
		SameSite: a.Cookie.SameSite,
		Expires:  session.ExpiresAt,
	})
}

// viewContext adds the translated form copy to data
func (a *SignInController) viewContext(ctx router.Context, data router.ViewContext) router.ViewContext {
	c := ctx.Context()
	t := a.Form.Translator(c)

	data["labels"] = map[string]string{
		KeyEmailAddress:   t.Translate(c, NamespaceLabels, KeyEmailAddress),
		KeyPassword:       t.Translate(c, NamespaceLabels, KeyPassword),
		KeyForgotPassword: t.Translate(c, NamespaceLabels, KeyForgotPassword),
		KeySignIn:         t.Translate(c, NamespaceLabels, KeySignIn),
		KeyRegister:       t.Translate(c, NamespaceLabels, KeyRegister),
	}
	prompts := map[string]string{}
	if a.Routes.Register != "" {
		prompts[KeyNoAccount] = t.Translate(c, NamespacePrompts, KeyNoAccount)
	}
	data["prompts"] = prompts
	data["routes"] = a.Routes

	return data
}

func statusFor(result *SubmitResult) int {
	if result.Succeeded() {
		return fiber.StatusOK
	}

	switch result.Classification.Kind {
	case ErrorKindValidation:
		return fiber.StatusUnprocessableEntity
	case ErrorKindRecoverableAuth, ErrorKindUnrecoverableAuth:
		if result.Classification.Code == CodeTooManyRequests {
			return fiber.StatusTooManyRequests
		}
		if result.Classification.Code == CodeNetworkRequestFailed {
			return fiber.StatusBadGateway
		}
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
