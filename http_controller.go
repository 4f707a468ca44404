package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	if session, ok := cookie.(*SessionObject); ok {
		return session, nil
	}

	// the guard stores its validated claims adapter
	if claims, ok := cookie.(sessionClaims); ok {
		return claims.sessionObject(), nil
	}

	user, ok := cookie.(*jwt.Token)
	if user == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := user.Claims.(jwt.MapClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromClaims(claims)
}

// RegisterAccountRoutes mounts the account API. The profile route is wrapped
// in the token guard; everything else is public.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.
		Post(controller.Routes.Register, controller.RegisterCreate).
		SetName("account.register")

	app.
		Get(fmt.Sprintf("%s/:token", controller.Routes.Verify), controller.VerificationExecute).
		SetName("account.verify")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("account.login")

	app.
		Post(controller.Routes.ForgotPassword, controller.PasswordResetRequest).
		SetName("account.forgot-password")

	app.
		Post(controller.Routes.ResetPassword, controller.PasswordResetExecute).
		SetName("account.reset-password")

	guard := controller.Auther.ProtectedRoute(
		controller.Config,
		controller.Auther.MakeRouteAuthErrorHandler(false),
	)

	app.
		Get(controller.Routes.Profile, guard(controller.ProfileShow)).
		SetName("account.profile")
}

type AccountControllerRoutes struct {
	Register       string
	Verify         string
	Login          string
	ForgotPassword string
	ResetPassword  string
	Profile        string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AccountControllerRoutes
	Auther       HTTPAuthenticator
	Config       Config
	Mailer       Mailer
	Activity     ActivitySink
	BaseURL      string
	ErrorHandler router.ErrorHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		Mailer:       noopMailer{},
		Activity:     noopActivitySink{},
		ErrorHandler: defaultErrHandler,
		Routes: &AccountControllerRoutes{
			Register:       "/register",
			Verify:         "/verify",
			Login:          "/login",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
			Profile:        "/profile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Auther = auther
		return c
	}
}

func WithControllerConfig(cfg Config) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Config = cfg
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerMailer(mailer Mailer) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Mailer = normalizeMailer(mailer)
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerBaseURL(baseURL string) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.BaseURL = baseURL
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	Username        string   `form:"username" json:"username"`
	Email           string   `form:"email" json:"email"`
	Password        string   `form:"password" json:"password"`
	ConfirmPassword string   `form:"confirm_password" json:"confirm_password"`
	StudyFields     []string `form:"study_fields" json:"study_fields"`
	LearningGoal    string   `form:"learning_goal" json:"learning_goal"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 30), is.Alphanumeric),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.LearningGoal, validation.Length(0, 500)),
	)
}

func (a *AccountController) RegisterCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, errorBody("Error parsing body", TextCodeDataParseError))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, validationErrorBody(err))
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var res *RegisterAccountResponse

	req := RegisterAccountMessage{
		Username:     payload.Username,
		Email:        payload.Email,
		Password:     payload.Password,
		StudyFields:  payload.StudyFields,
		LearningGoal: payload.LearningGoal,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	registerAccount := NewRegisterAccountHandler(a.Repo).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithBaseURL(a.BaseURL)

	if err := registerAccount.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register account error: %v", err)
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"message": "Registration successful, check your email to verify the account",
		"account": ProfileFromAccount(res.Account),
	})
}

func (a *AccountController) VerificationExecute(ctx router.Context) error {
	token := ctx.Param("token", "")

	var res *VerifyAccountResponse

	req := VerifyAccountMessage{
		Token: token,
		OnResponse: func(resp *VerifyAccountResponse) {
			res = resp
		},
	}

	verifyAccount := NewVerifyAccountHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := verifyAccount.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("account verification error: %v", err)
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Account verified, you can now log in",
		"account": ProfileFromAccount(res.Account),
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession will return the remember me flag
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules. The identifier can be a username or an
// email, so it only has to be present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, errorBody("Error parsing body", TextCodeDataParseError))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationErrorBody(err))
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token": token,
	})
}

func (a *AccountController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Logged out",
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AccountController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, errorBody("Error parsing body", TextCodeDataParseError))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationErrorBody(err))
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithBaseURL(a.BaseURL)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset request error: %v", err)
		return a.renderError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= PASSWORD RESET ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=============================")
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Password reset link sent, check your email",
	})
}

// PasswordResetVerifyPayload holds values for password reset
type PasswordResetVerifyPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Token,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, errorBody("Error parsing body", TextCodeDataParseError))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationErrorBody(err))
	}

	input := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), input); err != nil {
		a.Logger.Error("password reset finalize error: %v", err)
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Password updated, you can now log in",
	})
}

// ProfileShow returns the account projection for the authenticated caller.
// The password hash never leaves the store layer.
func (a *AccountController) ProfileShow(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.Config.GetContextKey())
	if err != nil {
		return a.renderError(ctx, err)
	}

	if !HasUserUUID(session) {
		return a.renderError(ctx, ErrUnableToMapClaims)
	}

	account, err := a.Repo.Accounts().GetByID(ctx.Context(), session.GetUserID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return a.renderError(ctx, ErrIdentityNotFound)
		}
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"account": ProfileFromAccount(account),
	})
}

func (a *AccountController) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return ctx.JSON(status, errorBody(richErr.Message, richErr.TextCode))
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for JSON responses
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func validationErrorBody(err error) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message":    "Error validating payload",
			"text_code":  "VALIDATION_ERROR",
			"validation": FormatValidationErrorToMap(err),
		},
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return c.JSON(fiber.StatusInternalServerError, errorBody(err.Error(), ""))
}
