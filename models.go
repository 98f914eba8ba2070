package conduit

import (
	"strconv"

	"github.com/uptrace/bun"
)

// User is the account model. The store assigns the id on insert; username is
// unique across accounts.
type User struct {
	bun.BaseModel `bun:"table:User,alias:usr"`

	ID              int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username        string `bun:"username,notnull,unique" json:"username,omitempty"`
	Bio             string `bun:"bio" json:"bio,omitempty"`
	ProfileImageURL string `bun:"profileImageUrl" json:"image,omitempty"`
}

// Auth is the credential model, logically 1:1 with User but stored as its
// own relation. Email is unique across credentials.
type Auth struct {
	bun.BaseModel `bun:"table:Auth,alias:auth"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID       int64  `bun:"userId,notnull" json:"user_id,omitempty"`
	Email        string `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string `bun:"passwordHash,notnull" json:"-"`

	User *User `bun:"rel:belongs-to,join:userId=id" json:"user,omitempty"`
}

// Tag is an article tag. Tags are seeded externally; this service only lists
// them.
type Tag struct {
	bun.BaseModel `bun:"table:Tag,alias:tag"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Name string `bun:"name,notnull,unique" json:"name,omitempty"`
}

// Follow is one edge of the profile follow graph.
type Follow struct {
	bun.BaseModel `bun:"table:Follow,alias:flw"`

	ID         int64 `bun:"id,pk,autoincrement" json:"id,omitempty"`
	FollowerID int64 `bun:"followerId,notnull" json:"follower_id,omitempty"`
	FolloweeID int64 `bun:"followeeId,notnull" json:"followee_id,omitempty"`
}

// Identity adapts an account plus its credential email for token issuance.
func (u *User) Identity(email string) Identity {
	return identityRef{
		id:       strconv.FormatInt(u.ID, 10),
		username: u.Username,
		email:    email,
	}
}
