package repository

import (
	"context"
	"errors"

	"poststream/internal/cache"
	"poststream/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Profile, error)
	GetByUserID(ctx context.Context, accountID uint) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	Update(ctx context.Context, id uint, update models.ProfileUpdate) (*models.Profile, error)
	Search(ctx context.Context, pattern string, limit int) ([]*models.Profile, error)
	TopByFollowers(ctx context.Context, limit int, exclude []uint) ([]*models.Profile, error)
	Recount(ctx context.Context) (int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		return r.db.WithContext(ctx).First(&profile, id).Error
	})
	if err != nil {
		return nil, notFound(err, "Profile", id)
	}
	return &profile, nil
}

// GetByIDs loads the given profiles in one query. Missing ids are skipped.
func (r *profileRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, accountID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", accountID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Profile for account", accountID)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Profile", username)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, id uint, update models.ProfileUpdate) (*models.Profile, error) {
	cols := update.Columns()
	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, models.NewNotFoundError("Profile", id)
		}
		cache.InvalidateProfiles(ctx, id)
	}
	return r.GetByID(ctx, id)
}

// Search matches pattern, an escaped lowercase LIKE pattern, against the
// username and both name fields.
func (r *profileRepository) Search(ctx context.Context, pattern string, limit int) ([]*models.Profile, error) {
	var profiles []*models.Profile
	err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern).
		Order("followers_count DESC").
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) TopByFollowers(ctx context.Context, limit int, exclude []uint) ([]*models.Profile, error) {
	q := r.db.WithContext(ctx).Order("followers_count DESC").Order("id ASC").Limit(limit)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var profiles []*models.Profile
	if err := q.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Recount rebuilds every profile counter from the relationship tables.
func (r *profileRepository) Recount(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`UPDATE profiles SET
		followers_count = (SELECT COUNT(*) FROM follows WHERE follows.following_id = profiles.id),
		following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = profiles.id),
		posts_count = (SELECT COUNT(*) FROM posts WHERE posts.author_id = profiles.id AND posts.is_retweet = ?)`,
		false)
	return res.RowsAffected, res.Error
}
