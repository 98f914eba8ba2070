package conduit

import (
	"context"
	"strconv"
)

// CurrentUser is the request-scoped identity resolved by the authorization
// middleware. It lives for the duration of a single request and is threaded
// explicitly into handlers and services.
type CurrentUser struct {
	ID       int64
	Username string
	Email    string
}

// Identity adapts the current user for token issuance.
func (u *CurrentUser) Identity() Identity {
	return identityRef{
		id:       strconv.FormatInt(u.ID, 10),
		username: u.Username,
		email:    u.Email,
	}
}

// identityRef is a plain value Identity, used when the caller already holds
// the resolved attributes.
type identityRef struct {
	id       string
	username string
	email    string
}

func (r identityRef) ID() string       { return r.id }
func (r identityRef) Username() string { return r.username }
func (r identityRef) Email() string    { return r.email }

// CurrentUserFromClaims resolves the request identity from validated token
// claims. A non-numeric subject means the token was minted outside this
// service and is treated as malformed.
func CurrentUserFromClaims(claims AuthClaims) (*CurrentUser, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	id, err := strconv.ParseInt(claims.Subject(), 10, 64)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	return &CurrentUser{
		ID:       id,
		Username: claims.Username(),
		Email:    claims.Email(),
	}, nil
}

var userCtxKey = &contextKey{"current-user"}

type contextKey struct {
	name string
}

// WithCurrentUser sets the current user in the given context
func WithCurrentUser(ctx context.Context, user *CurrentUser) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// CurrentUserFromContext finds the current user in the context.
func CurrentUserFromContext(ctx context.Context) (*CurrentUser, bool) {
	raw, ok := ctx.Value(userCtxKey).(*CurrentUser)
	return raw, ok
}
