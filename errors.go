package conduit

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrTokenExpired is returned when a session token's expiry is in the past.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers tokens that fail to decode or carry a bad signature.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the verification failure for a wrong password.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty plaintext passwords before hashing
var ErrNoEmptyString = errors.New("value should not be an empty string", errors.CategoryValidation)

// ErrUsernameTaken is the user-facing registration collision on username.
var ErrUsernameTaken = errors.New("Username is already used", errors.CategoryValidation).
	WithTextCode("USERNAME_TAKEN")

// ErrEmailTaken is the user-facing registration collision on email.
var ErrEmailTaken = errors.New("Email is already used", errors.CategoryValidation).
	WithTextCode("EMAIL_TAKEN")

// ErrInvalidCredentials is the single login failure message. It deliberately
// does not distinguish an unknown email from a wrong password.
var ErrInvalidCredentials = errors.New("email or password is invalid", errors.CategoryValidation).
	WithTextCode("INVALID_CREDENTIALS")

// ErrProfileNotFound is returned for profile lookups on unknown usernames.
var ErrProfileNotFound = errors.New("User not found", errors.CategoryValidation).
	WithTextCode("PROFILE_NOT_FOUND")

// ErrDatabase is the collapsed user-facing message for store failures.
var ErrDatabase = errors.New("Database error occurred", errors.CategoryExternal).
	WithTextCode("DATABASE_ERROR")

// ErrParse is the collapsed user-facing message for payload decode failures.
var ErrParse = errors.New("Parse error occurred", errors.CategoryBadInput).
	WithTextCode("PARSE_ERROR")

// ErrAccountIntegrity marks an authenticated identity with no backing account
// row. Unlike the validation taxonomy this surfaces as a server fault.
var ErrAccountIntegrity = errors.New("account record missing for authenticated identity", errors.CategoryInternal).
	WithTextCode("ACCOUNT_INTEGRITY").
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
