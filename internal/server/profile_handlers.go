package server

import (
	"errors"

	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/typeahead"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profiles/:id
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfileByUsername handles GET /api/profiles/by-username/:username
func (s *Server) GetProfileByUsername(c *fiber.Ctx) error {
	profile, err := s.profileService.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PATCH /api/profiles/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	profile, err := s.profileService.UpdateProfile(c.UserContext(), middleware.ViewerID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetTopProfiles handles GET /api/profiles/top
func (s *Server) GetTopProfiles(c *fiber.Ctx) error {
	profiles, err := s.profileService.TopProfiles(c.UserContext(), c.QueryInt("limit", 0), middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}

// SearchProfiles handles GET /api/profiles/search?q=
func (s *Server) SearchProfiles(c *fiber.Ctx) error {
	profiles, err := s.searchService.SearchProfiles(c.UserContext(), viewerKey(c), c.Query("q"))
	if err != nil {
		return s.searchError(c, err)
	}
	return c.JSON(profiles)
}

// searchError answers typeahead outcomes. A superseded request gets 409 so
// clients can drop it; the newer request carries the answer.
func (s *Server) searchError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, typeahead.ErrSuperseded):
		return respondError(c, models.NewConflictError("Superseded by a newer search"))
	case errors.Is(err, typeahead.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{Error: "Too many searches, slow down"})
	default:
		return respondError(c, err)
	}
}

// GetProfilePosts handles GET /api/profiles/:id/posts
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	posts, err := s.postService.ListByAuthor(c.UserContext(), id, page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFollowers handles GET /api/profiles/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	profiles, err := s.graphService.Followers(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}

// GetFollowing handles GET /api/profiles/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	profiles, err := s.graphService.Following(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}

// GetLikedPosts handles GET /api/profiles/:id/likes
func (s *Server) GetLikedPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	posts, err := s.graphService.LikedPosts(c.UserContext(), id, page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetRetweetedPosts handles GET /api/profiles/:id/retweets
func (s *Server) GetRetweetedPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	posts, err := s.graphService.RetweetedPosts(c.UserContext(), id, page.Limit, page.Offset, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFollowStatus handles GET /api/profiles/:id/follow
func (s *Server) GetFollowStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	following, err := s.graphService.IsFollowing(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

// Follow handles POST /api/profiles/:id/follow
func (s *Server) Follow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.graphService.Follow(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// Unfollow handles DELETE /api/profiles/:id/follow
func (s *Server) Unfollow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.graphService.Unfollow(c.UserContext(), middleware.ViewerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
