package repository

import (
	"context"

	"poststream/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for post likes
type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) (bool, error)
	Delete(ctx context.Context, userID, postID uint) (bool, error)
	Exists(ctx context.Context, userID, postID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Like, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Like, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Create inserts the like unless the pair exists and bumps the post's like
// count. Liking a missing post rolls back with a not-found error.
func (r *likeRepository) Create(ctx context.Context, like *models.Like) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := adjustPost(tx, like.PostID, colLikes, 1); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *likeRepository) Delete(ctx context.Context, userID, postID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := adjustPost(tx, postID, colLikes, -1); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *likeRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	return liked, err
}

func (r *likeRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Like, error) {
	var likes []*models.Like
	err := newestFirst(r.db.WithContext(ctx)).
		Where("post_id = ?", postID).
		Limit(limit).
		Offset(offset).
		Find(&likes).Error
	return likes, err
}

func (r *likeRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Like, error) {
	var likes []*models.Like
	err := newestFirst(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Limit(limit).
		Offset(offset).
		Find(&likes).Error
	return likes, err
}
