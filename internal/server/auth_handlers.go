package server

import (
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	session, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.Username == "" || req.Password == "" {
		return respondError(c, models.NewValidationError("Username and password are required"))
	}
	session, err := s.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return respondError(c, models.NewUnauthorizedError("Authorization required"))
	}
	err := s.authService.Logout(c.UserContext(), &service.Claims{
		AccountID: principal.AccountID,
		Username:  principal.Username,
		TokenID:   principal.TokenID,
		ExpiresAt: principal.ExpiresAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return respondError(c, models.NewUnauthorizedError("Authorization required"))
	}
	identity, profile, err := s.authService.CurrentIdentity(c.UserContext(), principal.AccountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"identity": identity,
		"profile":  profile,
	})
}
