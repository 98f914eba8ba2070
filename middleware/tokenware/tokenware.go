// Package tokenware is the request-authorization middleware: it extracts a
// session token from the inbound request, validates it, and stores the
// resulting claims for the matched handler. Every rejection, whatever the
// cause, is a 401 with the minimal body {"_tag":"Unauthorized"} so the
// response never explains why a token was refused.
package tokenware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrTokenMissingOrInvalid = errors.New("missing or malformed session token")
)

// AuthClaims mirrors the claims surface the middleware needs, avoiding an
// import cycle with the root package.
type AuthClaims interface {
	Subject() string
	Username() string
	Email() string
}

// TokenValidator validates a raw token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// ValidatorFunc adapts a function into a TokenValidator.
type ValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f ValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

// Unauthorized is the rejection body, a minimal tagged discriminator.
type Unauthorized struct {
	Tag string `json:"_tag"`
}

type Config struct {
	// Filter skips the middleware entirely when it returns true.
	Filter func(*fiber.Ctx) bool
	// ErrorHandler runs on every rejection. The default writes 401 with the
	// Unauthorized body.
	ErrorHandler fiber.ErrorHandler
	// ContextKey is the locals key the validated claims are stored under.
	ContextKey string
	// TokenLookup is a comma-separated list of <source>:<name> entries,
	// e.g. "header:Authorization,query:token,cookie:session".
	TokenLookup string
	// AuthScheme is the expected header scheme prefix, "Token" by default.
	AuthScheme string
	// Validator is required for token validation.
	Validator TokenValidator
}

// New builds the authorization middleware. It runs once per request on
// routes that declare it and short-circuits the handler on rejection.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	extractors := buildExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.Validator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		return c.Next()
	}
}

// ClaimsFromLocals retrieves the claims a previous New middleware stored.
func ClaimsFromLocals(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user"
	}
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("tokenware: middleware configuration requires a Validator")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, _ error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(Unauthorized{Tag: "Unauthorized"})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Token"
	}

	return cfg
}

type tokenExtractor func(c *fiber.Ctx) (string, error)

func extractRawToken(c *fiber.Ctx, extractors []tokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func buildExtractors(tokenLookup, authScheme string) []tokenExtractor {
	extractors := make([]tokenExtractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}
		source := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

// tokenFromHeader returns an extractor for "<scheme> <token>" headers.
func tokenFromHeader(header, authScheme string) tokenExtractor {
	scheme := strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		value := c.Get(header)
		l := len(scheme)
		if l == 0 || len(value) <= l+1 {
			return "", ErrTokenMissingOrInvalid
		}
		if !strings.EqualFold(value[:l], scheme) || value[l] != ' ' {
			return "", ErrTokenMissingOrInvalid
		}
		return strings.TrimSpace(value[l+1:]), nil
	}
}

func tokenFromQuery(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrTokenMissingOrInvalid
		}
		return token, nil
	}
}

func tokenFromCookie(name string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrInvalid
		}
		return token, nil
	}
}
