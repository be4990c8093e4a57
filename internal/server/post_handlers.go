package server

import (
	"context"
	"strings"

	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return respondError(c, models.NewValidationError("Search query is required"))
	}
	page := parsePagination(c)
	posts, err := s.postService.SearchPosts(c.UserContext(), q, page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Body     string `json:"body"`
		Tag      string `json:"tag"`
		ImageURL string `json:"image_url,omitempty"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: middleware.ViewerID(c),
		Body:     req.Body,
		Tag:      req.Tag,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id, middleware.ViewerID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	comments, err := s.commentService.ListComments(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		PostID:   id,
		AuthorID: middleware.ViewerID(c),
		Body:     req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// LikePost handles POST /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.toggle(c, s.graphService.Like)
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.toggle(c, s.graphService.Unlike)
}

// Retweet handles POST /api/posts/:id/retweet
func (s *Server) Retweet(c *fiber.Ctx) error {
	return s.toggle(c, s.graphService.Retweet)
}

// Unretweet handles DELETE /api/posts/:id/retweet
func (s *Server) Unretweet(c *fiber.Ctx) error {
	return s.toggle(c, s.graphService.Unretweet)
}

type toggleFunc func(ctx context.Context, profileID, postID uint) (*models.ToggleResult, error)

func (s *Server) toggle(c *fiber.Ctx, fn toggleFunc) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := fn(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetPostLikers handles GET /api/posts/:id/likes
func (s *Server) GetPostLikers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	profiles, err := s.graphService.PostLikers(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}

// GetPostRetweeters handles GET /api/posts/:id/retweets
func (s *Server) GetPostRetweeters(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	profiles, err := s.graphService.PostRetweeters(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}
