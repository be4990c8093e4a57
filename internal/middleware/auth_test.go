package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"poststream/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeVerifier(ctx context.Context, token string) (*Principal, error) {
	switch token {
	case "good":
		return &Principal{AccountID: 7, ProfileID: 42, Username: "janedoe"}, nil
	case "broken":
		return nil, errors.New("redis timeout")
	default:
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/test", AuthRequired(fakeVerifier), func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"userID": ViewerID(c), "accountID": p.AccountID})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Happy Path", "Bearer good", http.StatusOK},
		{"Missing Header", "", http.StatusUnauthorized},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"Empty Token", "Bearer ", http.StatusUnauthorized},
		{"Rejected Token", "Bearer expired", http.StatusUnauthorized},
		{"Verifier Failure", "Bearer broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]uint
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, uint(42), body["userID"])
				assert.Equal(t, uint(7), body["accountID"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/test", OptionalAuth(fakeVerifier), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": ViewerID(c)})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer expired")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
