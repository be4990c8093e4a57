package repository

import (
	"context"
	"errors"

	"poststream/internal/database"
	"poststream/internal/models"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for identity records.
type AccountRepository interface {
	CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// CreateWithProfile stores the account and its profile together; the profile
// starts with zeroed counters and is linked to the new account id.
func (r *accountRepository) CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		profile.UserID = account.ID
		profile.Username = account.Username
		profile.FollowersCount = 0
		profile.FollowingCount = 0
		profile.PostsCount = 0
		return tx.Create(profile).Error
	})
	if database.IsUniqueViolation(err) {
		return models.NewConflictError("username or email already taken")
	}
	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, notFound(err, "Account", id)
	}
	return &account, nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Account", username)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
