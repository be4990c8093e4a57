package service

import (
	"context"
	"strings"

	"poststream/internal/models"
	"poststream/internal/repository"
	"poststream/internal/validation"
)

const DefaultTopPosters = 3

type ProfileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	return s.profiles.GetByUsername(ctx, username)
}

// UpdateProfile applies the set fields of update to the viewer's profile.
// Counters and the username are not editable here.
func (s *ProfileService) UpdateProfile(ctx context.Context, profileID uint, update models.ProfileUpdate) (*models.Profile, error) {
	if err := validation.ValidateProfileUpdate(update); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if update.AvatarURL != nil {
		*update.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}
	if update.CoverImageURL != nil {
		*update.CoverImageURL = strings.TrimSpace(*update.CoverImageURL)
	}
	return s.profiles.Update(ctx, profileID, update)
}

// TopProfiles returns the most followed profiles, excluding the viewer
// when one is given.
func (s *ProfileService) TopProfiles(ctx context.Context, limit int, viewerID uint) ([]*models.Profile, error) {
	if limit <= 0 {
		limit = DefaultTopPosters
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	var exclude []uint
	if viewerID != 0 {
		exclude = []uint{viewerID}
	}
	profiles, err := s.profiles.TopByFollowers(ctx, limit, exclude)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	return profiles, nil
}
