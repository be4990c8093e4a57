package service

import (
	"context"

	"poststream/internal/featureflags"
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/observability"
	"poststream/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const suggestionCount = 3

// FeedService assembles the home timeline: posts by the viewer and by
// everyone the viewer follows, newest first.
type FeedService struct {
	follows  repository.FollowRepository
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	enricher *Enricher
	flags    *featureflags.Manager
}

func NewFeedService(
	follows repository.FollowRepository,
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	enricher *Enricher,
	flags *featureflags.Manager,
) *FeedService {
	return &FeedService{
		follows:  follows,
		posts:    posts,
		profiles: profiles,
		enricher: enricher,
		flags:    flags,
	}
}

// Feed returns one page of the viewer's timeline. The page is fetched one
// row long so HasMore is exact. A viewer who follows nobody gets
// EmptyGraph set and, when enabled, a few profiles to follow.
func (s *FeedService) Feed(ctx context.Context, viewerID uint, limit, offset int) (*models.FeedPage, error) {
	ctx, end := observability.StartSpan(ctx, "feed.assemble", attribute.Int64("viewer.id", int64(viewerID)))
	page, err := s.assemble(ctx, viewerID, limit, offset)
	end(err)
	return page, err
}

func (s *FeedService) assemble(ctx context.Context, viewerID uint, limit, offset int) (*models.FeedPage, error) {
	if _, err := s.profiles.GetByID(ctx, viewerID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	following, err := s.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	authors := appendUnique(following, viewerID)

	posts, err := s.posts.ListByAuthors(ctx, authors, limit+1, offset)
	if err != nil {
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	page := &models.FeedPage{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		page.HasMore = true
	}
	if page.Posts == nil {
		page.Posts = []*models.Post{}
	}
	if err := s.enricher.Posts(ctx, page.Posts, viewerID); err != nil {
		observability.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(following) == 0 {
		page.EmptyGraph = true
		if s.flags == nil || s.flags.Enabled(featureflags.FeedSuggestions, viewerID) {
			page.Suggestions = s.suggestions(ctx, viewerID)
		}
		observability.FeedRequests.WithLabelValues("empty").Inc()
		return page, nil
	}

	observability.FeedRequests.WithLabelValues("followed").Inc()
	return page, nil
}

// suggestions is best effort; a failure leaves the empty state without them.
func (s *FeedService) suggestions(ctx context.Context, viewerID uint) []*models.Profile {
	profiles, err := s.profiles.TopByFollowers(ctx, suggestionCount, []uint{viewerID})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "follow suggestions unavailable", "error", err)
		return nil
	}
	return profiles
}
