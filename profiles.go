package conduit

import (
	"context"
)

// ProfileView is the profile payload returned by the profile endpoints.
type ProfileView struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}

// Profiles resolves public profiles and maintains the follow graph.
type Profiles struct {
	repo   RepositoryManager
	logger Logger
}

func NewProfiles(repo RepositoryManager) *Profiles {
	return &Profiles{
		repo:   repo,
		logger: defLogger{},
	}
}

func (s *Profiles) WithLogger(logger Logger) *Profiles {
	s.logger = logger
	return s
}

// GetProfile returns the profile for username. The following flag reflects
// the viewer when present and is false for anonymous requests.
func (s *Profiles) GetProfile(ctx context.Context, viewer *CurrentUser, username string) (*ProfileView, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	following := false
	if viewer != nil {
		if following, err = s.repo.Follows().IsFollowing(ctx, viewer.ID, user.ID); err != nil {
			s.logger.Error("GetProfile follow lookup failed", "error", err)
			return nil, wrapStoreError(err)
		}
	}

	return profileView(user, following), nil
}

// Follow records viewer following username. Following an already-followed
// profile is a no-op.
func (s *Profiles) Follow(ctx context.Context, viewer *CurrentUser, username string) (*ProfileView, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Follows().Follow(ctx, viewer.ID, user.ID); err != nil {
		s.logger.Error("Follow edge insert failed", "error", err)
		return nil, wrapStoreError(err)
	}

	return profileView(user, true), nil
}

// Unfollow removes the follow edge; unfollowing a profile that was never
// followed is a no-op.
func (s *Profiles) Unfollow(ctx context.Context, viewer *CurrentUser, username string) (*ProfileView, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Follows().Unfollow(ctx, viewer.ID, user.ID); err != nil {
		s.logger.Error("Unfollow edge delete failed", "error", err)
		return nil, wrapStoreError(err)
	}

	return profileView(user, false), nil
}

func (s *Profiles) lookup(ctx context.Context, username string) (*User, error) {
	user, err := s.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		s.logger.Error("Profile lookup failed", "error", err, "username", username)
		return nil, wrapStoreError(err)
	}
	return user, nil
}

func profileView(user *User, following bool) *ProfileView {
	return &ProfileView{
		Username:  user.Username,
		Bio:       user.Bio,
		Image:     user.ProfileImageURL,
		Following: following,
	}
}
