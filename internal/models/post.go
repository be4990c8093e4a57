package models

import (
	"time"
)

// DefaultPostTag is the category given to posts created without one.
const DefaultPostTag = "general"

// MaxPostBodyLength is the practical body limit in characters.
const MaxPostBodyLength = 280

// Post is either an original post or a retweet. A retweet is a row of its
// own authored by the retweeter with an empty body and OriginalPostID set;
// the original is joined in when the post is read.
type Post struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AuthorID       uint      `gorm:"not null;index:idx_posts_author_created,priority:1" json:"author_id"`
	AuthorUsername string    `gorm:"size:30;not null" json:"author_username"`
	Body           string    `gorm:"type:text" json:"body"`
	Tag            string    `gorm:"size:50" json:"tag,omitempty"`
	Hashtags       []string  `gorm:"serializer:json;type:text" json:"hashtags"`
	ImageURL       string    `json:"image_url,omitempty"`
	CommentsCount  int       `gorm:"not null;default:0" json:"comments_count"`
	LikesCount     int       `gorm:"not null;default:0" json:"likes_count"`
	RetweetsCount  int       `gorm:"not null;default:0" json:"retweets_count"`
	IsRetweet      bool      `gorm:"not null;default:false" json:"is_retweet"`
	OriginalPostID *uint     `gorm:"index" json:"original_post_id,omitempty"`
	CreatedAt      time.Time `gorm:"index;index:idx_posts_author_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Attached at read time
	Author       *Profile `gorm:"-" json:"author,omitempty"`
	OriginalPost *Post    `gorm:"-" json:"original_post,omitempty"`
	Liked        bool     `gorm:"-" json:"liked"`
	Retweeted    bool     `gorm:"-" json:"retweeted"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// PostHashtag indexes one hashtag occurrence of a post. A post that repeats
// a tag has one row per occurrence.
type PostHashtag struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Position  int       `gorm:"primaryKey;autoIncrement:false" json:"position"`
	Tag       string    `gorm:"size:100;not null;index" json:"tag"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (PostHashtag) TableName() string {
	return "post_hashtags"
}

// Comment is a reply on a post. Comments are never edited in place.
type Comment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PostID         uint      `gorm:"not null;index" json:"post_id"`
	AuthorID       uint      `gorm:"not null;index" json:"author_id"`
	AuthorUsername string    `gorm:"size:30;not null" json:"author_username"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `json:"created_at"`

	Author *Profile `gorm:"-" json:"author,omitempty"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "comments"
}
