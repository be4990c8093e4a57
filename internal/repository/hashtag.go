package repository

import (
	"context"
	"time"

	"poststream/internal/models"

	"gorm.io/gorm"
)

// HashtagRepository reads the hashtag index.
type HashtagRepository interface {
	TagsWithPrefix(ctx context.Context, pattern string, window int) ([]string, error)
	TagsSince(ctx context.Context, since time.Time, limit int) ([]string, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository creates a new hashtag repository
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

// TagsWithPrefix returns tag occurrences matching pattern, an escaped LIKE
// prefix pattern, from the most recent window rows.
func (r *hashtagRepository) TagsWithPrefix(ctx context.Context, pattern string, window int) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Where(`tag LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC").
		Limit(window).
		Pluck("tag", &tags).Error
	return tags, err
}

// TagsSince returns up to limit tag occurrences created after since, newest first.
func (r *hashtagRepository) TagsSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Where("created_at > ?", since).
		Order("created_at DESC").
		Limit(limit).
		Pluck("tag", &tags).Error
	return tags, err
}
