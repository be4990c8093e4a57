package repository

import (
	"context"

	"poststream/internal/cache"
	"poststream/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListByAuthors(ctx context.Context, authorIDs []uint, limit, offset int) ([]*models.Post, error)
	ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error)
	Search(ctx context.Context, pattern string, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, post *models.Post) error
	Recount(ctx context.Context) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create stores an original post, one hashtag row per extracted tag, and
// bumps the author's post count, all in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if len(post.Hashtags) > 0 {
			rows := make([]models.PostHashtag, 0, len(post.Hashtags))
			for i, tag := range post.Hashtags {
				rows = append(rows, models.PostHashtag{
					PostID:    post.ID,
					Position:  i,
					Tag:       tag,
					CreatedAt: post.CreatedAt,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return adjustProfile(tx, post.AuthorID, colPosts, 1)
	})
	if err != nil {
		return err
	}
	cache.InvalidateProfiles(ctx, post.AuthorID)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, notFound(err, "Post", id)
	}
	return &post, nil
}

// GetByIDs loads the given posts in one query, newest first. Missing ids are skipped.
func (r *postRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	if err := newestFirst(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := newestFirst(r.db.WithContext(ctx)).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByAuthors pages through posts by any of the given authors with a
// single "author in set" query.
func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, limit, offset int) ([]*models.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	err := newestFirst(r.db.WithContext(ctx)).
		Where("author_id IN ?", authorIDs).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	sub := r.db.Model(&models.PostHashtag{}).Select("post_id").Where("tag = ?", tag)
	err := newestFirst(r.db.WithContext(ctx)).
		Where("id IN (?)", sub).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Search matches pattern, an escaped lowercase LIKE pattern, against post bodies.
func (r *postRepository) Search(ctx context.Context, pattern string, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := newestFirst(r.db.WithContext(ctx)).
		Where(`LOWER(body) LIKE ? ESCAPE '\'`, pattern).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Delete removes an original post with its hashtag rows and every retweet
// of it, and decrements the author's post count. Likes and comments on the
// post are left in place.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	var retweeters []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var retweets []models.Retweet
		if err := tx.Where("post_id = ?", post.ID).Find(&retweets).Error; err != nil {
			return err
		}
		if len(retweets) > 0 {
			dupIDs := make([]uint, 0, len(retweets))
			for _, rt := range retweets {
				dupIDs = append(dupIDs, rt.RetweetPostID)
				retweeters = append(retweeters, rt.UserID)
			}
			if err := tx.Where("post_id = ?", post.ID).Delete(&models.Retweet{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", dupIDs).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, post.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		return adjustProfile(tx, post.AuthorID, colPosts, -1)
	})
	if err != nil {
		return err
	}
	cache.InvalidateProfiles(ctx, append(retweeters, post.AuthorID)...)
	return nil
}

// Recount rebuilds every post counter from the relationship tables.
func (r *postRepository) Recount(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`UPDATE posts SET
		likes_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id),
		retweets_count = (SELECT COUNT(*) FROM retweets WHERE retweets.post_id = posts.id),
		comments_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)`)
	return res.RowsAffected, res.Error
}
