package auth

import (
	"time"

	"github.com/studypair/go-auth/middleware/jwtware"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			TokenValidator: tokenValidatorAdapter{a.auth},
		})(hf)
	}
}

// tokenValidatorAdapter bridges the Authenticator session check into the
// middleware's validator interface.
type tokenValidatorAdapter struct {
	auth Authenticator
}

func (t tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	session, err := t.auth.SessionFromToken(tokenString)
	if err != nil {
		return nil, err
	}
	return sessionClaims{session}, nil
}

type sessionClaims struct {
	session Session
}

func (s sessionClaims) Subject() string { return s.session.GetUserID() }
func (s sessionClaims) UserID() string  { return s.session.GetUserID() }

func (s sessionClaims) Expires() time.Time {
	if t := s.session.GetExpiration(); t != nil {
		return *t
	}
	return time.Time{}
}

func (s sessionClaims) IssuedAt() time.Time {
	if t := s.session.GetIssuedAt(); t != nil {
		return *t
	}
	return time.Time{}
}

// sessionObject unwraps the session the guard planted in locals so handlers
// reading it through GetRouterSession see the full session, not the adapter.
func (s sessionClaims) sessionObject() *SessionObject {
	if so, ok := s.session.(*SessionObject); ok {
		return so
	}
	return &SessionObject{
		UserID:         s.session.GetUserID(),
		Audience:       s.session.GetAudience(),
		Issuer:         s.session.GetIssuer(),
		IssuedAt:       s.session.GetIssuedAt(),
		ExpirationDate: s.session.GetExpiration(),
		Data:           s.session.GetData(),
	}
}

// Login verifies credentials and, on success, sets the token cookie and
// returns the signed token for the response body.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return token, nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// MakeRouteAuthErrorHandler renders guard failures as JSON. A request with no
// token at all gets 401; a token that fails validation gets 403.
func (a *RouteAuthenticator) MakeRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %v", err)
			return ctx.Next()
		}

		if jwtware.IsMissingToken(err) {
			return ctx.JSON(router.StatusUnauthorized, errorBody("Unauthenticated", "AUTH_NO_TOKEN"))
		}

		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeForbidden).
				WithTextCode(TextCodeInvalidToken)
		}

		return ctx.JSON(router.StatusForbidden, errorBody(richErr.Message, richErr.TextCode))
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error: %s text_code=%s",
		richErr.Message,
		richErr.TextCode,
	)

	return c.JSON(richErr.Code, errorBody(richErr.Message, richErr.TextCode))
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(richErr.Code, errorBody(richErr.Message, richErr.TextCode))
	}
}

func errorBody(message, textCode string) map[string]any {
	body := map[string]any{
		"message": message,
	}
	if textCode != "" {
		body["text_code"] = textCode
	}
	return map[string]any{"error": body}
}
