package service

import (
	"context"

	"poststream/internal/models"
	"poststream/internal/repository"
)

// Enricher attaches authors, retweeted originals and viewer state to posts.
// Each call costs at most one query per kind no matter how many posts or
// distinct authors the page holds.
type Enricher struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	likes    repository.LikeRepository
	retweets repository.RetweetRepository
}

// NewEnricher creates an Enricher.
func NewEnricher(
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	likes repository.LikeRepository,
	retweets repository.RetweetRepository,
) *Enricher {
	return &Enricher{posts: posts, profiles: profiles, likes: likes, retweets: retweets}
}

// Posts fills Author, OriginalPost (with its author) and, when viewerID is
// set, the Liked and Retweeted flags of the post a reader interacts with.
func (e *Enricher) Posts(ctx context.Context, posts []*models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}

	var originalIDs []uint
	for _, p := range posts {
		if p.IsRetweet && p.OriginalPostID != nil {
			originalIDs = appendUnique(originalIDs, *p.OriginalPostID)
		}
	}
	originals := make(map[uint]*models.Post, len(originalIDs))
	if len(originalIDs) > 0 {
		found, err := e.posts.GetByIDs(ctx, originalIDs)
		if err != nil {
			return err
		}
		for _, o := range found {
			originals[o.ID] = o
		}
	}

	var authorIDs []uint
	for _, p := range posts {
		authorIDs = appendUnique(authorIDs, p.AuthorID)
	}
	for _, o := range originals {
		authorIDs = appendUnique(authorIDs, o.AuthorID)
	}
	authors, err := e.profilesByID(ctx, authorIDs)
	if err != nil {
		return err
	}

	for _, o := range originals {
		o.Author = authors[o.AuthorID]
	}
	for _, p := range posts {
		p.Author = authors[p.AuthorID]
		if p.IsRetweet && p.OriginalPostID != nil {
			p.OriginalPost = originals[*p.OriginalPostID]
		}
	}

	if viewerID == 0 {
		return nil
	}
	return e.viewerState(ctx, posts, viewerID)
}

func (e *Enricher) viewerState(ctx context.Context, posts []*models.Post, viewerID uint) error {
	var targetIDs []uint
	for _, p := range posts {
		targetIDs = appendUnique(targetIDs, targetOf(p))
	}

	liked, err := e.likes.LikedPostIDs(ctx, viewerID, targetIDs)
	if err != nil {
		return err
	}
	retweeted, err := e.retweets.RetweetedPostIDs(ctx, viewerID, targetIDs)
	if err != nil {
		return err
	}
	likedSet := toSet(liked)
	retweetedSet := toSet(retweeted)

	for _, p := range posts {
		id := targetOf(p)
		p.Liked = likedSet[id]
		p.Retweeted = retweetedSet[id]
		if p.OriginalPost != nil {
			p.OriginalPost.Liked = p.Liked
			p.OriginalPost.Retweeted = p.Retweeted
		}
	}
	return nil
}

// Comments attaches each comment's author with one batched lookup.
func (e *Enricher) Comments(ctx context.Context, comments []*models.Comment) error {
	var ids []uint
	for _, c := range comments {
		ids = appendUnique(ids, c.AuthorID)
	}
	authors, err := e.profilesByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range comments {
		c.Author = authors[c.AuthorID]
	}
	return nil
}

func (e *Enricher) profilesByID(ctx context.Context, ids []uint) (map[uint]*models.Profile, error) {
	out := make(map[uint]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	profiles, err := e.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// targetOf is the post likes and retweets attach to: the original for a retweet.
func targetOf(p *models.Post) uint {
	if p.IsRetweet && p.OriginalPostID != nil {
		return *p.OriginalPostID
	}
	return p.ID
}

func appendUnique(ids []uint, id uint) []uint {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func toSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
