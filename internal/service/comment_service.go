package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"poststream/internal/events"
	"poststream/internal/models"
	"poststream/internal/repository"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	enricher *Enricher
	events   events.Publisher
}

type CreateCommentInput struct {
	PostID   uint
	AuthorID uint
	Body     string
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	enricher *Enricher,
	publisher events.Publisher,
) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		profiles: profiles,
		enricher: enricher,
		events:   publisher,
	}
}

// CreateComment replies to a post and bumps its comment count.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Comment body is required")
	}
	if utf8.RuneCountInString(body) > models.MaxPostBodyLength {
		return nil, models.NewValidationError("Comment too long (max 280 characters)")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	author, err := s.profiles.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:         post.ID,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Body:           body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = author

	emit(ctx, s.events, events.Event{
		Subject:         events.SubjectPostCommented,
		ActorID:         author.ID,
		ActorUsername:   author.Username,
		TargetProfileID: post.AuthorID,
		PostID:          post.ID,
		CommentID:       comment.ID,
	})
	return comment, nil
}

// ListComments returns a post's thread oldest first with authors attached.
func (s *CommentService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	comments, err := s.comments.ListByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	if err := s.enricher.Comments(ctx, comments); err != nil {
		return nil, err
	}
	return comments, nil
}
