package conduit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	"github.com/realworld-apps/conduit/middleware/tokenware"
)

// ProtectedRoute builds the authorization middleware for routes that require
// a current user, from the shared auth configuration and token validator.
func ProtectedRoute(cfg Config, validator TokenValidator) fiber.Handler {
	return tokenware.New(tokenware.Config{
		Validator: tokenware.ValidatorFunc(func(raw string) (tokenware.AuthClaims, error) {
			return validator.Validate(raw)
		}),
		AuthScheme:  cfg.GetAuthScheme(),
		ContextKey:  cfg.GetContextKey(),
		TokenLookup: cfg.GetTokenLookup(),
	})
}

// OptionalRoute builds the authorization middleware for routes a visitor may
// hit anonymously. A valid token resolves the viewer as usual; a missing or
// invalid one falls through to the handler with no claims instead of a 401.
func OptionalRoute(cfg Config, validator TokenValidator) fiber.Handler {
	return tokenware.New(tokenware.Config{
		Validator: tokenware.ValidatorFunc(func(raw string) (tokenware.AuthClaims, error) {
			return validator.Validate(raw)
		}),
		AuthScheme:  cfg.GetAuthScheme(),
		ContextKey:  cfg.GetContextKey(),
		TokenLookup: cfg.GetTokenLookup(),
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return c.Next()
		},
	})
}

// HTTPStatus maps a failure to its transport status per the error taxonomy:
// auth failures are 401, internal faults are 5xx, and everything else the
// client can see is a 422 validation outcome.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return fiber.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case errors.CategoryInternal:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusUnprocessableEntity
	}
}
