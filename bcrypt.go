package conduit

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the hashing cost used when none is configured. Test
// configurations should use bcrypt.MinCost to keep suites fast.
const DefaultBcryptCost = 12

// Hasher produces and verifies salted bcrypt password digests.
type Hasher struct {
	cost int
}

var _ PasswordAuthenticator = (*Hasher)(nil)

// NewHasher returns a Hasher with the given cost, clamped to the range
// bcrypt accepts. A zero or negative cost falls back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// HashPassword will generate a password hash. Each call salts independently,
// so hashing the same plaintext twice yields different digests.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "password hashing failed")
	}
	return string(digest), nil
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. A wrong password yields ErrMismatchedHashAndPassword;
// any other failure (e.g. a malformed digest) is reported as its own error,
// never collapsed into a mismatch.
func (h *Hasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return errors.Wrap(err, errors.CategoryInternal, "password verification failed")
	}
	return nil
}
