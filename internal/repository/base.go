// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"poststream/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errNoop rolls back a transaction whose constrained write found nothing to do.
var errNoop = errors.New("repository: no change")

// notFound maps gorm's missing-row error onto the typed not-found error.
func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// counterExpr adds delta to col without letting it drop below zero.
// col is always one of the fixed counter column names below.
func counterExpr(col string, delta int) clause.Expr {
	return gorm.Expr("CASE WHEN "+col+" + ? < 0 THEN 0 ELSE "+col+" + ? END", delta, delta)
}

const (
	colFollowers = "followers_count"
	colFollowing = "following_count"
	colPosts     = "posts_count"
	colLikes     = "likes_count"
	colRetweets  = "retweets_count"
	colComments  = "comments_count"
)

// adjustProfile applies a floored counter delta to a profile. It reports a
// typed not-found error when the profile does not exist.
func adjustProfile(tx *gorm.DB, id uint, col string, delta int) error {
	res := tx.Model(&models.Profile{}).Where("id = ?", id).Update(col, counterExpr(col, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	return nil
}

// adjustPost applies a floored counter delta to a post and bumps updated_at.
func adjustPost(tx *gorm.DB, id uint, col string, delta int) error {
	res := tx.Model(&models.Post{}).Where("id = ?", id).Update(col, counterExpr(col, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

func oldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
