package repository

import (
	"context"
	"errors"

	"poststream/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RetweetRepository defines the interface for retweets. A retweet is a
// tracking row plus a retweet Post row; both are written and removed in
// the same transaction.
type RetweetRepository interface {
	Create(ctx context.Context, retweet *models.Retweet, post *models.Post) (bool, error)
	Delete(ctx context.Context, userID, postID uint) (bool, error)
	Exists(ctx context.Context, userID, postID uint) (bool, error)
	RetweetedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Retweet, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Retweet, error)
}

type retweetRepository struct {
	db *gorm.DB
}

// NewRetweetRepository creates a new retweet repository
func NewRetweetRepository(db *gorm.DB) RetweetRepository {
	return &retweetRepository{db: db}
}

// Create stores the retweet post and its tracking row and bumps the
// original's retweet count. If the pair already exists the retweet post is
// rolled back and false is returned.
func (r *retweetRepository) Create(ctx context.Context, retweet *models.Retweet, post *models.Post) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		retweet.RetweetPostID = post.ID
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(retweet)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoop
		}
		return adjustPost(tx, retweet.PostID, colRetweets, 1)
	})
	if errors.Is(err, errNoop) {
		post.ID = 0
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the tracking row and its retweet post and decrements the
// original's retweet count.
func (r *retweetRepository) Delete(ctx context.Context, userID, postID uint) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt models.Retweet
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&rt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNoop
		}
		if err != nil {
			return err
		}

		res := tx.Delete(&models.Retweet{}, rt.ID)
		if res.Error != nil {
			return res.Error
		}
		// lost a race with a concurrent unretweet
		if res.RowsAffected == 0 {
			return errNoop
		}
		if err := tx.Delete(&models.Post{}, rt.RetweetPostID).Error; err != nil {
			return err
		}
		return adjustPost(tx, postID, colRetweets, -1)
	})
	if errors.Is(err, errNoop) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *retweetRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Retweet{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

func (r *retweetRepository) RetweetedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Retweet{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

func (r *retweetRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Retweet, error) {
	var retweets []*models.Retweet
	err := newestFirst(r.db.WithContext(ctx)).
		Where("post_id = ?", postID).
		Limit(limit).
		Offset(offset).
		Find(&retweets).Error
	return retweets, err
}

func (r *retweetRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Retweet, error) {
	var retweets []*models.Retweet
	err := newestFirst(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Limit(limit).
		Offset(offset).
		Find(&retweets).Error
	return retweets, err
}
