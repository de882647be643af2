package signin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/i18n"
)

// routerContext lets fakeContext embed router.Context and still define its
// own Context method.
type routerContext = router.Context

// fakeContext implements the parts of router.Context the controller uses.
// Anything else panics on the nil embedded interface.
type fakeContext struct {
	routerContext

	ctx      context.Context
	payload  *signin.SignInRequest
	bindErr  error
	status   int
	view     string
	bind     any
	cookies  []*router.Cookie
	redirect string
	json     any
}

func newFakeContext(payload *signin.SignInRequest) *fakeContext {
	return &fakeContext{ctx: context.Background(), payload: payload, status: 200}
}

func (f *fakeContext) Context() context.Context { return f.ctx }

func (f *fakeContext) Bind(v any) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	if req, ok := v.(*signin.SignInRequest); ok && f.payload != nil {
		*req = *f.payload
	}
	return nil
}

func (f *fakeContext) Status(code int) router.Context {
	f.status = code
	return f
}

func (f *fakeContext) Render(name string, bind any, _ ...string) error {
	f.view = name
	f.bind = bind
	return nil
}

func (f *fakeContext) Cookie(c *router.Cookie) {
	f.cookies = append(f.cookies, c)
}

func (f *fakeContext) Redirect(location string, status ...int) error {
	f.redirect = location
	if len(status) > 0 {
		f.status = status[0]
	}
	return nil
}

func (f *fakeContext) JSON(code int, v any) error {
	f.status = code
	f.json = v
	return nil
}

func (f *fakeContext) cookie(name string) *router.Cookie {
	for _, c := range f.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newTestController(backend signin.IdentityBackend, locale string) *signin.SignInController {
	form := signin.NewEmailPasswordForm(backend, signin.StaticConfig(&signin.Config{Locale: locale})).
		WithLogger(nopLogger{}).
		WithTranslatorProvider(i18n.Default().Provider())
	return signin.NewSignInController(form, signin.WithControllerLogger(nopLogger{}))
}

func TestSignInShowRendersTranslatedCopy(t *testing.T) {
	ctrl := newTestController(new(MockBackend), "fr-ca")
	ctx := newFakeContext(nil)

	require.NoError(t, ctrl.SignInShow(ctx))
	assert.Equal(t, "signin", ctx.view)

	view, ok := ctx.bind.(router.ViewContext)
	require.True(t, ok)

	labels := view["labels"].(map[string]string)
	assert.Equal(t, i18n.Default().Resolve("fr-ca", signin.NamespaceLabels, signin.KeySignIn), labels[signin.KeySignIn])
	assert.Equal(t, "", view["form_error"])
}

func TestSignInPostValidationError(t *testing.T) {
	backend := new(MockBackend)
	ctrl := newTestController(backend, "en-us")
	ctx := newFakeContext(&signin.SignInRequest{Email: "nope", Password: validPassword})

	require.NoError(t, ctrl.SignInPost(ctx))

	assert.Equal(t, 422, ctx.status)
	view := ctx.bind.(router.ViewContext)
	assert.Equal(t, "Please enter a valid email address", view["form_error"])
	assert.True(t, view["field_errors"].(signin.FieldErrors).Has(signin.FieldEmail))
	assert.Equal(t, signin.SignInRequest{Email: "nope"}, view["record"])
	backend.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignInPostAuthFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("SignIn", mock.Anything, mock.Anything, validEmail, validPassword).
		Return(nil, signin.NewAuthError(signin.CodeWrongPassword, "wrong password"))

	ctrl := newTestController(backend, "en-us")
	ctx := newFakeContext(&signin.SignInRequest{Email: validEmail, Password: validPassword})

	require.NoError(t, ctrl.SignInPost(ctx))

	assert.Equal(t, 401, ctx.status)
	view := ctx.bind.(router.ViewContext)
	assert.Equal(t, "Incorrect password", view["form_error"])
	assert.Nil(t, ctx.cookie("signin_session"))
}

func TestSignInPostSuccessSetsCookieAndRedirects(t *testing.T) {
	backend := new(MockBackend)
	expires := time.Now().Add(time.Hour)
	backend.On("SignIn", mock.Anything, mock.Anything, validEmail, validPassword).
		Return(&signin.Session{UserID: "u-1", Email: validEmail, Token: "tok", ExpiresAt: expires}, nil)

	ctrl := newTestController(backend, "en-us")
	ctx := newFakeContext(&signin.SignInRequest{Email: validEmail, Password: validPassword})

	require.NoError(t, ctrl.SignInPost(ctx))

	assert.Equal(t, "/", ctx.redirect)
	assert.Equal(t, router.StatusSeeOther, ctx.status)

	cookie := ctx.cookie("signin_session")
	require.NotNil(t, cookie)
	assert.Equal(t, "tok", cookie.Value)
	assert.True(t, cookie.HTTPOnly)
	assert.Equal(t, expires, cookie.Expires)
}

func TestSignInPostBindError(t *testing.T) {
	var handled error
	form := signin.NewEmailPasswordForm(new(MockBackend), signin.StaticConfig(&signin.Config{}))
	ctrl := signin.NewSignInController(form,
		signin.WithControllerLogger(nopLogger{}),
		signin.WithControllerErrorHandler(func(_ router.Context, err error) error {
			handled = err
			return nil
		}),
	)

	ctx := newFakeContext(nil)
	ctx.bindErr = errors.New("bad body")

	require.NoError(t, ctrl.SignInPost(ctx))
	assert.EqualError(t, handled, "bad body")
}

func TestSignInAPIReturnsResult(t *testing.T) {
	backend := new(MockBackend)
	backend.On("SignIn", mock.Anything, mock.Anything, validEmail, validPassword).
		Return(nil, signin.NewAuthError(signin.CodeTooManyRequests, "slow down"))

	ctrl := newTestController(backend, "en-us")
	ctx := newFakeContext(&signin.SignInRequest{Email: validEmail, Password: validPassword})

	require.NoError(t, ctrl.SignInAPI(ctx))
	assert.Equal(t, 429, ctx.status)

	result, ok := ctx.json.(*signin.SubmitResult)
	require.True(t, ok)
	assert.Equal(t, signin.StateSettled, result.State)
	assert.Equal(t, signin.CodeTooManyRequests, result.Classification.Code)
	assert.Equal(t, i18n.Default().Resolve("en-us", signin.NamespaceErrors, signin.KeyTooManyRequests), result.Detail)
	assert.NotEqual(t, result.Attempt.LastError, result.Detail)
}

func TestSignOutClearsCookie(t *testing.T) {
	ctrl := newTestController(new(MockBackend), "en-us")
	ctx := newFakeContext(nil)

	require.NoError(t, ctrl.SignOut(ctx))

	cookie := ctx.cookie("signin_session")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Equal(t, "/signin", ctx.redirect)
}

func TestNewSignInControllerRequiresForm(t *testing.T) {
	assert.Panics(t, func() { signin.NewSignInController(nil) })
}

func TestSignInShowRoutesAndRegisterPrompt(t *testing.T) {
	form := signin.NewEmailPasswordForm(new(MockBackend), signin.StaticConfig(&signin.Config{})).
		WithLogger(nopLogger{}).
		WithTranslatorProvider(i18n.Default().Provider())

	ctrl := signin.NewSignInController(form,
		signin.WithControllerLogger(nopLogger{}),
		signin.WithControllerRoutes(signin.SignInControllerRoutes{
			ForgotPassword: "/password-reset",
			Register:       "/register",
		}),
	)
	ctx := newFakeContext(nil)
	require.NoError(t, ctrl.SignInShow(ctx))

	view := ctx.bind.(router.ViewContext)
	routes := view["routes"].(*signin.SignInControllerRoutes)
	assert.Equal(t, "/password-reset", routes.ForgotPassword)
	assert.Equal(t, "/register", routes.Register)
	assert.Equal(t, "/signin", routes.SignIn, "unset routes keep their defaults")

	prompts := view["prompts"].(map[string]string)
	assert.NotEmpty(t, prompts[signin.KeyNoAccount])
}

func TestSignInShowHidesPromptWithoutRegisterRoute(t *testing.T) {
	ctrl := newTestController(new(MockBackend), "en-us")
	ctx := newFakeContext(nil)
	require.NoError(t, ctrl.SignInShow(ctx))

	view := ctx.bind.(router.ViewContext)
	assert.Empty(t, view["routes"].(*signin.SignInControllerRoutes).Register)
	assert.NotContains(t, view["prompts"].(map[string]string), signin.KeyNoAccount)
}
