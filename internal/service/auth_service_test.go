package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"poststream/internal/cache"
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/repository"
	"poststream/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "CorrectHorse9!"

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewAuthService(repository.NewAccountRepository(db), repository.NewProfileRepository(db), AuthConfig{
		Secret:   "test-secret",
		Issuer:   "poststream-api",
		Audience: "poststream-client",
		TTL:      time.Hour,
	}).WithHashCost(bcrypt.MinCost)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	s := newAuthService(t)
	ctx := context.Background()

	session, err := s.Register(ctx, RegisterInput{
		Username:  "janedoe",
		Email:     "Jane@Example.com",
		Password:  testPassword,
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "janedoe", session.Profile.Username)
	assert.Equal(t, "Jane Doe", session.Profile.DisplayName())
	assert.Zero(t, session.Profile.FollowersCount)

	claims, err := s.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "janedoe", claims.Username)
	assert.NotEmpty(t, claims.TokenID)

	profileID, err := s.ViewerProfileID(ctx, claims.AccountID)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, profileID)

	identity, _, err := s.CurrentIdentity(ctx, claims.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", identity.Email)

	login, err := s.Login(ctx, "janedoe", testPassword)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, login.Profile.ID)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	s := newAuthService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Username: "janedoe", Email: "jane@example.com", Password: testPassword})
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{Username: "janedoe", Email: "other@example.com", Password: testPassword})
	assert.True(t, models.HasCode(err, models.CodeConflict))

	_, err = s.Register(ctx, RegisterInput{Username: "x", Email: "x@example.com", Password: testPassword})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = s.Register(ctx, RegisterInput{Username: "weakling", Email: "weak@example.com", Password: "password"})
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestAuthService_LoginFailuresLookAlike(t *testing.T) {
	s := newAuthService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{Username: "janedoe", Email: "jane@example.com", Password: testPassword})
	require.NoError(t, err)

	_, wrongPassword := s.Login(ctx, "janedoe", "Nope-Nope-123")
	_, unknownUser := s.Login(ctx, "ghost", testPassword)
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.True(t, models.HasCode(unknownUser, models.CodeUnauthorized))
}

func TestAuthService_AuthenticateRejectsForeignTokens(t *testing.T) {
	s := newAuthService(t)
	ctx := context.Background()

	forge := func(secret, aud string, exp time.Time) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "1",
			"iss": "poststream-api",
			"aud": aud,
			"exp": exp.Unix(),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}

	_, err := s.Authenticate(ctx, forge("other-secret", "poststream-client", time.Now().Add(time.Hour)))
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = s.Authenticate(ctx, forge("test-secret", "someone-else", time.Now().Add(time.Hour)))
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = s.Authenticate(ctx, forge("test-secret", "poststream-client", time.Now().Add(-time.Minute)))
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = s.Authenticate(ctx, "garbage")
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	s := newAuthService(t)
	ctx := context.Background()
	session, err := s.Register(ctx, RegisterInput{Username: "janedoe", Email: "jane@example.com", Password: testPassword})
	require.NoError(t, err)

	claims, err := s.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	_, err = s.ViewerProfileID(ctx, claims.AccountID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.ViewerKey(claims.AccountID)))

	require.NoError(t, s.Logout(ctx, claims))
	assert.False(t, mr.Exists(cache.ViewerKey(claims.AccountID)))
	assert.True(t, mr.Exists(cache.RevokedTokenKey(claims.TokenID)))

	_, err = s.Authenticate(ctx, session.Token)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
}

func TestAuthService_LogoutWithoutRedisWarns(t *testing.T) {
	cache.SetClient(nil)
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { middleware.Logger = prev })

	s := newAuthService(t)
	ctx := context.Background()
	session, err := s.Register(ctx, RegisterInput{Username: "janedoe", Email: "jane@example.com", Password: testPassword})
	require.NoError(t, err)
	claims, err := s.Authenticate(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, claims))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "token revocation unavailable")

	// Nothing to check revocation against, so the token keeps working.
	_, err = s.Authenticate(ctx, session.Token)
	assert.NoError(t, err)
}
