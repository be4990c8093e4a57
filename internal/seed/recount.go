package seed

import (
	"context"
	"fmt"

	"poststream/internal/cache"
	"poststream/internal/models"
	"poststream/internal/repository"

	"gorm.io/gorm"
)

// RecountResult reports how many rows each counter pass touched.
type RecountResult struct {
	Profiles int64
	Posts    int64
}

// Recount rebuilds profile and post counters in one transaction, then drops
// every cached profile so readers see the repaired counts.
func Recount(ctx context.Context, db *gorm.DB) (RecountResult, error) {
	var res RecountResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if res.Profiles, err = repository.NewProfileRepository(tx).Recount(ctx); err != nil {
			return fmt.Errorf("recount profiles: %w", err)
		}
		if res.Posts, err = repository.NewPostRepository(tx).Recount(ctx); err != nil {
			return fmt.Errorf("recount posts: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	var ids []uint
	if err := db.WithContext(ctx).Model(&models.Profile{}).Pluck("id", &ids).Error; err != nil {
		return res, fmt.Errorf("list profiles: %w", err)
	}
	cache.InvalidateProfiles(ctx, ids...)
	return res, nil
}
