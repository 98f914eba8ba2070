package conduit

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// AccountView is the user payload returned by every account operation.
type AccountView struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
	Image    string `json:"image"`
	Token    string `json:"token"`
}

// UpdateAccountRequest carries a partial profile update. Nil fields are left
// untouched.
type UpdateAccountRequest struct {
	Username *string
	Email    *string
	Password *string
	Bio      *string
	Image    *string
}

// Accounts orchestrates registration, login, and the current-user flows on
// top of the credential store, the password hasher, and the token service.
type Accounts struct {
	repo   RepositoryManager
	hasher PasswordAuthenticator
	tokens TokenService
	logger Logger
}

// NewAccounts returns a new Accounts service
func NewAccounts(repo RepositoryManager, hasher PasswordAuthenticator, tokens TokenService) *Accounts {
	return &Accounts{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (s *Accounts) WithLogger(logger Logger) *Accounts {
	s.logger = logger
	return s
}

// Register creates an account and its credential atomically and issues a
// session token. The uniqueness pre-checks are a best-effort courtesy: two
// concurrent registrations can both pass them, and the loser's constraint
// failure is mapped to the same field-level validation error.
func (s *Accounts) Register(ctx context.Context, username, email, password string) (*AccountView, error) {
	if taken, err := s.repo.Users().ExistsByUsername(ctx, username); err != nil {
		s.logger.Error("Register username pre-check failed", "error", err)
		return nil, wrapStoreError(err)
	} else if taken {
		return nil, ErrUsernameTaken
	}

	if taken, err := s.repo.Credentials().ExistsByEmail(ctx, email); err != nil {
		s.logger.Error("Register email pre-check failed", "error", err)
		return nil, wrapStoreError(err)
	} else if taken {
		return nil, ErrEmailTaken
	}

	passwordHash, err := s.hasher.HashPassword(password)
	if err != nil {
		s.logger.Error("Register password hashing failed", "error", err)
		return nil, err
	}

	user := &User{Username: username}
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if user, err = s.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return err
		}

		cred := &Auth{
			UserID:       user.ID,
			Email:        email,
			PasswordHash: passwordHash,
		}
		_, err := s.repo.Credentials().CreateTx(ctx, tx, cred)
		return err
	})
	if err != nil {
		s.logger.Error("Register transaction failed", "error", err, "username", username)
		return nil, mapUniqueViolation(err)
	}

	token, err := s.tokens.Generate(user.Identity(email))
	if err != nil {
		s.logger.Error("Register token issuance failed", "error", err)
		return nil, err
	}

	return &AccountView{
		Username: username,
		Email:    email,
		Bio:      "",
		Image:    "",
		Token:    token,
	}, nil
}

// Login authenticates an email/password pair and issues a fresh session
// token. An unknown email and a wrong password fail identically so the
// response never reveals whether the account exists.
func (s *Accounts) Login(ctx context.Context, email, password string) (*AccountView, error) {
	cred, err := s.repo.Credentials().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Login credential lookup failed", "error", err)
		return nil, wrapStoreError(err)
	}

	if cred.User == nil {
		s.logger.Error("Login credential has no backing account", "user_id", cred.UserID)
		return nil, ErrAccountIntegrity
	}

	if err := s.hasher.ComparePasswordAndHash(password, cred.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Login password verification failed", "error", err)
		return nil, err
	}

	token, err := s.tokens.Generate(cred.User.Identity(cred.Email))
	if err != nil {
		s.logger.Error("Login token issuance failed", "error", err)
		return nil, err
	}

	return accountView(cred.User, cred.Email, token), nil
}

// CurrentAccount returns the profile behind an authorized identity and
// refreshes its session token. A missing backing row is a data-integrity
// fault, not a validation error.
func (s *Accounts) CurrentAccount(ctx context.Context, current *CurrentUser) (*AccountView, error) {
	token, err := s.tokens.Generate(current.Identity())
	if err != nil {
		s.logger.Error("CurrentAccount token refresh failed", "error", err)
		return nil, err
	}

	user, err := s.repo.Users().GetByID(ctx, current.ID)
	if err != nil {
		if IsRecordNotFound(err) {
			s.logger.Error("CurrentAccount identity has no backing row", "user_id", current.ID)
			return nil, ErrAccountIntegrity
		}
		return nil, wrapStoreError(err)
	}

	return accountView(user, current.Email, token), nil
}

// UpdateAccount applies a partial profile update and returns the refreshed
// view with a token bound to the (possibly updated) identity.
func (s *Accounts) UpdateAccount(ctx context.Context, current *CurrentUser, patch UpdateAccountRequest) (*AccountView, error) {
	var user *User
	email := current.Email

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().GetByID(ctx, current.ID); err != nil {
			return err
		}

		if patch.Username != nil {
			user.Username = *patch.Username
		}
		if patch.Bio != nil {
			user.Bio = *patch.Bio
		}
		if patch.Image != nil {
			user.ProfileImageURL = *patch.Image
		}
		if user, err = s.repo.Users().UpdateTx(ctx, tx, user); err != nil {
			return err
		}

		if patch.Email == nil && patch.Password == nil {
			return nil
		}

		cred, err := s.repo.Credentials().GetByUserID(ctx, current.ID)
		if err != nil {
			return err
		}
		if patch.Email != nil {
			cred.Email = *patch.Email
		}
		if patch.Password != nil {
			hash, err := s.hasher.HashPassword(*patch.Password)
			if err != nil {
				return err
			}
			cred.PasswordHash = hash
		}
		if _, err := s.repo.Credentials().UpdateTx(ctx, tx, cred); err != nil {
			return err
		}

		email = cred.Email
		return nil
	})
	if err != nil {
		if IsRecordNotFound(err) {
			s.logger.Error("UpdateAccount identity has no backing row", "user_id", current.ID)
			return nil, ErrAccountIntegrity
		}
		s.logger.Error("UpdateAccount transaction failed", "error", err, "user_id", current.ID)
		return nil, mapUniqueViolation(err)
	}

	token, err := s.tokens.Generate(user.Identity(email))
	if err != nil {
		s.logger.Error("UpdateAccount token issuance failed", "error", err)
		return nil, err
	}

	return accountView(user, email, token), nil
}

func accountView(user *User, email, token string) *AccountView {
	return &AccountView{
		Username: user.Username,
		Email:    email,
		Bio:      user.Bio,
		Image:    user.ProfileImageURL,
		Token:    token,
	}
}

// mapUniqueViolation resolves a store uniqueness failure to the matching
// field-level validation error, falling back to the generic database error.
func mapUniqueViolation(err error) error {
	column, ok := UniqueViolationColumn(err)
	if !ok {
		return wrapStoreError(err)
	}

	switch column {
	case "username":
		return ErrUsernameTaken
	case "email":
		return ErrEmailTaken
	default:
		return wrapStoreError(err)
	}
}

func wrapStoreError(err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category == errors.CategoryValidation {
		return err
	}
	return errors.Wrap(err, ErrDatabase.Category, ErrDatabase.Message).
		WithTextCode(ErrDatabase.TextCode)
}
