package repository

import (
	"context"

	"poststream/internal/cache"
	"poststream/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines the interface for the follow graph
type FollowRepository interface {
	Create(ctx context.Context, follow *models.Follow) (bool, error)
	Delete(ctx context.Context, followerID, followingID uint) (bool, error)
	Exists(ctx context.Context, followerID, followingID uint) (bool, error)
	FollowingIDs(ctx context.Context, followerID uint) ([]uint, error)
	ListFollowers(ctx context.Context, profileID uint, limit, offset int) ([]*models.Follow, error)
	ListFollowing(ctx context.Context, profileID uint, limit, offset int) ([]*models.Follow, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the follow unless the pair already exists. Counters move
// only when a row was inserted, so repeating a follow never double counts.
func (r *followRepository) Create(ctx context.Context, follow *models.Follow) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(follow)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := adjustProfile(tx, follow.FollowerID, colFollowing, 1); err != nil {
			return err
		}
		if err := adjustProfile(tx, follow.FollowingID, colFollowers, 1); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		cache.InvalidateProfiles(ctx, follow.FollowerID, follow.FollowingID)
	}
	return created, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := adjustProfile(tx, followerID, colFollowing, -1); err != nil {
			return err
		}
		if err := adjustProfile(tx, followingID, colFollowers, -1); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		cache.InvalidateProfiles(ctx, followerID, followingID)
	}
	return deleted, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

func (r *followRepository) FollowingIDs(ctx context.Context, followerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error
	return ids, err
}

func (r *followRepository) ListFollowers(ctx context.Context, profileID uint, limit, offset int) ([]*models.Follow, error) {
	var follows []*models.Follow
	err := newestFirst(r.db.WithContext(ctx)).
		Where("following_id = ?", profileID).
		Limit(limit).
		Offset(offset).
		Find(&follows).Error
	return follows, err
}

func (r *followRepository) ListFollowing(ctx context.Context, profileID uint, limit, offset int) ([]*models.Follow, error) {
	var follows []*models.Follow
	err := newestFirst(r.db.WithContext(ctx)).
		Where("follower_id = ?", profileID).
		Limit(limit).
		Offset(offset).
		Find(&follows).Error
	return follows, err
}
