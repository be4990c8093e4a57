// Package service implements PostStream's domain operations on top of the
// repositories: posting, comments, the follow graph, the feed and search.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"poststream/internal/events"
	"poststream/internal/hashtag"
	"poststream/internal/models"
	"poststream/internal/observability"
	"poststream/internal/repository"
	"poststream/internal/validation"
)

const maxTagLen = 50

type PostService struct {
	posts    repository.PostRepository
	retweets repository.RetweetRepository
	profiles repository.ProfileRepository
	enricher *Enricher
	events   events.Publisher
}

type CreatePostInput struct {
	AuthorID uint
	Body     string
	Tag      string
	ImageURL string
}

func NewPostService(
	posts repository.PostRepository,
	retweets repository.RetweetRepository,
	profiles repository.ProfileRepository,
	enricher *Enricher,
	publisher events.Publisher,
) *PostService {
	return &PostService{
		posts:    posts,
		retweets: retweets,
		profiles: profiles,
		enricher: enricher,
		events:   publisher,
	}
}

// CreatePost stores an original post and returns it with its author
// attached. A post needs a body or an image.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	body := strings.TrimSpace(in.Body)
	imageURL := strings.TrimSpace(in.ImageURL)
	if body == "" && imageURL == "" {
		return nil, models.NewValidationError("Post body or image is required")
	}
	if utf8.RuneCountInString(body) > models.MaxPostBodyLength {
		return nil, models.NewValidationError("Post body too long (max 280 characters)")
	}
	if err := validation.ValidateImageURL("image_url", imageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	tag := strings.TrimSpace(in.Tag)
	if tag == "" {
		tag = models.DefaultPostTag
	}
	if utf8.RuneCountInString(tag) > maxTagLen {
		return nil, models.NewValidationError("Tag too long (max 50 characters)")
	}

	author, err := s.profiles.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Body:           body,
		Tag:            tag,
		Hashtags:       hashtag.Extract(body),
		ImageURL:       imageURL,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	observability.PostsCreated.Inc()

	author.PostsCount++
	post.Author = author

	emit(ctx, s.events, events.Event{
		Subject:       events.SubjectPostCreated,
		ActorID:       author.ID,
		ActorUsername: author.Username,
		PostID:        post.ID,
	})
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enricher.Posts(ctx, []*models.Post{post}, viewerID); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts pages through every post newest first with authors attached.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	posts, err := s.posts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.enriched(ctx, posts, viewerID)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if _, err := s.profiles.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	posts, err := s.posts.ListByAuthors(ctx, []uint{authorID}, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.enriched(ctx, posts, viewerID)
}

func (s *PostService) ListByHashtag(ctx context.Context, tag string, limit, offset int, viewerID uint) ([]*models.Post, error) {
	tag = hashtag.Normalize(tag)
	if tag == "" {
		return nil, models.NewValidationError("Hashtag is required")
	}
	limit, offset = clampPage(limit, offset)
	posts, err := s.posts.ListByHashtag(ctx, tag, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.enriched(ctx, posts, viewerID)
}

func (s *PostService) SearchPosts(ctx context.Context, query string, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	limit, offset = clampPage(limit, offset)
	posts, err := s.posts.Search(ctx, hashtag.ContainsPattern(query), limit, offset)
	if err != nil {
		return nil, err
	}
	return s.enriched(ctx, posts, viewerID)
}

// DeletePost removes one of the viewer's posts. Deleting a retweet undoes it.
func (s *PostService) DeletePost(ctx context.Context, postID, viewerID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != viewerID {
		return models.NewForbiddenError("Only the author can delete this post")
	}

	if post.IsRetweet && post.OriginalPostID != nil {
		_, err := s.retweets.Delete(ctx, viewerID, *post.OriginalPostID)
		return err
	}

	if err := s.posts.Delete(ctx, post); err != nil {
		return err
	}
	emit(ctx, s.events, events.Event{
		Subject:       events.SubjectPostDeleted,
		ActorID:       viewerID,
		ActorUsername: post.AuthorUsername,
		PostID:        post.ID,
	})
	return nil
}

func (s *PostService) enriched(ctx context.Context, posts []*models.Post, viewerID uint) ([]*models.Post, error) {
	if posts == nil {
		posts = []*models.Post{}
	}
	if err := s.enricher.Posts(ctx, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}
