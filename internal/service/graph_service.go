package service

import (
	"context"
	"fmt"

	"poststream/internal/events"
	"poststream/internal/models"
	"poststream/internal/observability"
	"poststream/internal/repository"
)

// GraphService toggles follows, likes and retweets. Every toggle is
// idempotent: repeating it without the inverse changes nothing. Toggles of
// the same pair are serialized in-process; the unique indexes behind the
// repositories keep them correct across processes.
type GraphService struct {
	follows  repository.FollowRepository
	likes    repository.LikeRepository
	retweets repository.RetweetRepository
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	enricher *Enricher
	events   events.Publisher
	locks    *KeyedMutex
}

func NewGraphService(
	follows repository.FollowRepository,
	likes repository.LikeRepository,
	retweets repository.RetweetRepository,
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	enricher *Enricher,
	publisher events.Publisher,
) *GraphService {
	return &GraphService{
		follows:  follows,
		likes:    likes,
		retweets: retweets,
		posts:    posts,
		profiles: profiles,
		enricher: enricher,
		events:   publisher,
		locks:    NewKeyedMutex(),
	}
}

func recordToggle(kind string, changed bool) {
	outcome := "noop"
	if changed {
		outcome = "changed"
	}
	observability.GraphToggles.WithLabelValues(kind, outcome).Inc()
}

// Follow makes followerID follow followeeID. Following yourself is rejected.
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	if followerID == followeeID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	follower, err := s.profiles.GetByID(ctx, followerID)
	if err != nil {
		return nil, err
	}
	followee, err := s.profiles.GetByID(ctx, followeeID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("follow:%d:%d", followerID, followeeID))
	created, err := s.follows.Create(ctx, &models.Follow{
		FollowerID:        follower.ID,
		FollowingID:       followee.ID,
		FollowerUsername:  follower.Username,
		FollowingUsername: followee.Username,
	})
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("follow", created)

	if created {
		emit(ctx, s.events, events.Event{
			Subject:         events.SubjectProfileFollowed,
			ActorID:         follower.ID,
			ActorUsername:   follower.Username,
			TargetProfileID: followee.ID,
		})
	}
	return s.followResult(ctx, followeeID, created, true)
}

// Unfollow removes the follow if present.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	if followerID == followeeID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	if _, err := s.profiles.GetByID(ctx, followeeID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("follow:%d:%d", followerID, followeeID))
	deleted, err := s.follows.Delete(ctx, followerID, followeeID)
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("unfollow", deleted)
	return s.followResult(ctx, followeeID, deleted, false)
}

func (s *GraphService) followResult(ctx context.Context, followeeID uint, changed, active bool) (*models.ToggleResult, error) {
	followee, err := s.profiles.GetByID(ctx, followeeID)
	if err != nil {
		return nil, err
	}
	return &models.ToggleResult{Changed: changed, Active: active, Count: followee.FollowersCount}, nil
}

func (s *GraphService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.follows.Exists(ctx, followerID, followeeID)
}

// resolveTarget returns the post that likes and retweets attach to, which
// for a retweet is its original.
func (s *GraphService) resolveTarget(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsRetweet && post.OriginalPostID != nil {
		return s.posts.GetByID(ctx, *post.OriginalPostID)
	}
	return post, nil
}

func (s *GraphService) Like(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	user, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	post, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("like:%d:%d", userID, post.ID))
	created, err := s.likes.Create(ctx, &models.Like{UserID: user.ID, PostID: post.ID, Username: user.Username})
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("like", created)

	if created {
		emit(ctx, s.events, events.Event{
			Subject:         events.SubjectPostLiked,
			ActorID:         user.ID,
			ActorUsername:   user.Username,
			TargetProfileID: post.AuthorID,
			PostID:          post.ID,
		})
	}
	return s.postResult(ctx, post.ID, created, true, func(p *models.Post) int { return p.LikesCount })
}

func (s *GraphService) Unlike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	post, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("like:%d:%d", userID, post.ID))
	deleted, err := s.likes.Delete(ctx, userID, post.ID)
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("unlike", deleted)
	return s.postResult(ctx, post.ID, deleted, false, func(p *models.Post) int { return p.LikesCount })
}

// Retweet creates the retweet post and its tracking row for userID.
func (s *GraphService) Retweet(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	user, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	original, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}

	originalID := original.ID
	unlock := s.locks.Lock(fmt.Sprintf("retweet:%d:%d", userID, originalID))
	created, err := s.retweets.Create(ctx,
		&models.Retweet{UserID: user.ID, PostID: originalID, Username: user.Username},
		&models.Post{
			AuthorID:       user.ID,
			AuthorUsername: user.Username,
			IsRetweet:      true,
			OriginalPostID: &originalID,
		},
	)
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("retweet", created)

	if created {
		emit(ctx, s.events, events.Event{
			Subject:         events.SubjectPostRetweeted,
			ActorID:         user.ID,
			ActorUsername:   user.Username,
			TargetProfileID: original.AuthorID,
			PostID:          originalID,
		})
	}
	return s.postResult(ctx, originalID, created, true, func(p *models.Post) int { return p.RetweetsCount })
}

// Unretweet removes the tracking row and the retweet post together.
func (s *GraphService) Unretweet(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	original, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("retweet:%d:%d", userID, original.ID))
	deleted, err := s.retweets.Delete(ctx, userID, original.ID)
	unlock()
	if err != nil {
		return nil, err
	}
	recordToggle("unretweet", deleted)
	return s.postResult(ctx, original.ID, deleted, false, func(p *models.Post) int { return p.RetweetsCount })
}

func (s *GraphService) postResult(ctx context.Context, postID uint, changed, active bool, count func(*models.Post) int) (*models.ToggleResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &models.ToggleResult{Changed: changed, Active: active, Count: count(post)}, nil
}

// Followers lists who follows profileID, most recent first.
func (s *GraphService) Followers(ctx context.Context, profileID uint, limit, offset int) ([]*models.Profile, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	follows, err := s.follows.ListFollowers(ctx, profileID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowerID)
	}
	return s.orderedProfiles(ctx, ids)
}

// Following lists who profileID follows, most recent first.
func (s *GraphService) Following(ctx context.Context, profileID uint, limit, offset int) ([]*models.Profile, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	follows, err := s.follows.ListFollowing(ctx, profileID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowingID)
	}
	return s.orderedProfiles(ctx, ids)
}

// PostLikers lists the profiles that liked a post, most recent first.
func (s *GraphService) PostLikers(ctx context.Context, postID uint, limit, offset int) ([]*models.Profile, error) {
	post, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	likes, err := s.likes.ListByPost(ctx, post.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.UserID)
	}
	return s.orderedProfiles(ctx, ids)
}

// PostRetweeters lists the profiles that retweeted a post, most recent first.
func (s *GraphService) PostRetweeters(ctx context.Context, postID uint, limit, offset int) ([]*models.Profile, error) {
	post, err := s.resolveTarget(ctx, postID)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	retweets, err := s.retweets.ListByPost(ctx, post.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(retweets))
	for _, r := range retweets {
		ids = append(ids, r.UserID)
	}
	return s.orderedProfiles(ctx, ids)
}

// LikedPosts lists the posts profileID liked, most recently liked first.
func (s *GraphService) LikedPosts(ctx context.Context, profileID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	likes, err := s.likes.ListByUser(ctx, profileID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.PostID)
	}
	return s.orderedPosts(ctx, ids, viewerID)
}

// RetweetedPosts lists the originals profileID retweeted, most recent first.
func (s *GraphService) RetweetedPosts(ctx context.Context, profileID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	retweets, err := s.retweets.ListByUser(ctx, profileID, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(retweets))
	for _, r := range retweets {
		ids = append(ids, r.PostID)
	}
	return s.orderedPosts(ctx, ids, viewerID)
}

// orderedProfiles loads ids in one query and returns them in ids order.
func (s *GraphService) orderedProfiles(ctx context.Context, ids []uint) ([]*models.Profile, error) {
	out := make([]*models.Profile, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// orderedPosts loads ids in one query, keeps ids order and drops posts
// deleted since the relationship was recorded.
func (s *GraphService) orderedPosts(ctx context.Context, ids []uint, viewerID uint) ([]*models.Post, error) {
	out := make([]*models.Post, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	if err := s.enricher.Posts(ctx, out, viewerID); err != nil {
		return nil, err
	}
	return out, nil
}
