package models

import "time"

// Profile is the public face of an account and the anchor every other
// record points at. The counters are denormalized and maintained by the
// write paths of follows and posts.
type Profile struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Username       string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	FirstName      string    `gorm:"size:100" json:"first_name"`
	LastName       string    `gorm:"size:100" json:"last_name"`
	Bio            string    `gorm:"size:500" json:"bio"`
	AvatarURL      string    `json:"avatar_url"`
	CoverImageURL  string    `json:"cover_image_url"`
	FollowersCount int       `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int       `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int       `gorm:"not null;default:0" json:"posts_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}

// DisplayName returns "First Last", falling back to the username.
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Username
	}
}

// ProfileUpdate carries the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Bio           *string `json:"bio"`
	AvatarURL     *string `json:"avatar_url"`
	CoverImageURL *string `json:"cover_image_url"`
}

// Columns returns the column map for a partial update.
func (u ProfileUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.FirstName != nil {
		cols["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		cols["last_name"] = *u.LastName
	}
	if u.Bio != nil {
		cols["bio"] = *u.Bio
	}
	if u.AvatarURL != nil {
		cols["avatar_url"] = *u.AvatarURL
	}
	if u.CoverImageURL != nil {
		cols["cover_image_url"] = *u.CoverImageURL
	}
	return cols
}
