package models

import "time"

// Follow records that FollowerID follows FollowingID.
type Follow struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	FollowerID        uint      `gorm:"not null;uniqueIndex:idx_follows_pair,priority:1" json:"follower_id"`
	FollowingID       uint      `gorm:"not null;uniqueIndex:idx_follows_pair,priority:2;index" json:"following_id"`
	FollowerUsername  string    `gorm:"size:30" json:"follower_username"`
	FollowingUsername string    `gorm:"size:30" json:"following_username"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// Like is a user's like on a post. At most one per (UserID, PostID).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_pair,priority:1" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_pair,priority:2;index" json:"post_id"`
	Username  string    `gorm:"size:30" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}

// Retweet tracks that a user retweeted a post. RetweetPostID points at the
// retweet Post row created alongside it.
type Retweet struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_retweets_pair,priority:1" json:"user_id"`
	PostID        uint      `gorm:"not null;uniqueIndex:idx_retweets_pair,priority:2;index" json:"post_id"`
	RetweetPostID uint      `gorm:"not null;index" json:"retweet_post_id"`
	Username      string    `gorm:"size:30" json:"username"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Retweet) TableName() string {
	return "retweets"
}

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&Account{},
		&Profile{},
		&Post{},
		&PostHashtag{},
		&Comment{},
		&Follow{},
		&Like{},
		&Retweet{},
	}
}
