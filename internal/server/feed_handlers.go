package server

import (
	"poststream/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c)
	feed, err := s.feedService.Feed(c.UserContext(), middleware.ViewerID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// SearchHashtags handles GET /api/hashtags/search?q=
func (s *Server) SearchHashtags(c *fiber.Ctx) error {
	tags, err := s.searchService.SearchHashtags(c.UserContext(), viewerKey(c), c.Query("q"), c.QueryInt("limit", 0))
	if err != nil {
		return s.searchError(c, err)
	}
	return c.JSON(tags)
}

// GetTrending handles GET /api/hashtags/trending
func (s *Server) GetTrending(c *fiber.Ctx) error {
	trending, err := s.searchService.Trending(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(trending)
}

// GetHashtagPosts handles GET /api/hashtags/:tag/posts
func (s *Server) GetHashtagPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListByHashtag(c.UserContext(), c.Params("tag"), page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}
