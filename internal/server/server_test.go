package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"poststream/internal/cache"
	"poststream/internal/config"
	"poststream/internal/events"
	"poststream/internal/models"
	"poststream/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testPassword = "Sup3r-Secret!pw"

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret-that-is-long-enough-for-hs256",
		JWTIssuer:           "poststream-test",
		JWTAudience:         "poststream-test-clients",
		JWTTTL:              time.Hour,
		FeatureFlags:        "feed_suggestions=on,trending_fallback=on",
		SearchRPS:           1000,
		SearchBurst:         100,
		HashtagSearchWindow: 500,
		TrendingWindow:      7 * 24 * time.Hour,
		TrendingFetchLimit:  1000,
	}
}

type testAPI struct {
	t   *testing.T
	app *fiber.App
	srv *Server
}

func newTestAPI(t *testing.T, rdb *redis.Client, pub events.Publisher) *testAPI {
	t.Helper()
	if pub == nil {
		pub = events.NopPublisher{}
	}
	srv, err := NewServerWithDeps(testConfig(), testutil.NewTestDB(t), rdb, pub)
	require.NoError(t, err)
	return &testAPI{t: t, app: srv.NewApp(), srv: srv}
}

func (a *testAPI) do(method, path, token string, body any) (int, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, out
}

func (a *testAPI) decode(raw []byte, dest any) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(raw, dest), string(raw))
}

type session struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

func (a *testAPI) register(username string) session {
	a.t.Helper()
	status, raw := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":   username,
		"email":      username + "@example.com",
		"password":   testPassword,
		"first_name": username,
	})
	require.Equal(a.t, http.StatusCreated, status, string(raw))
	var s session
	a.decode(raw, &s)
	require.NotEmpty(a.t, s.Token)
	return s
}

func (a *testAPI) createPost(token, body string) *models.Post {
	a.t.Helper()
	status, raw := a.do(http.MethodPost, "/api/posts", token, map[string]string{"body": body})
	require.Equal(a.t, http.StatusCreated, status, string(raw))
	var post models.Post
	a.decode(raw, &post)
	return &post
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	status, _ := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw := api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	api.decode(raw, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "disabled", body.Checks["redis"])
}

func TestReadinessFailsWhenDatabaseIsDown(t *testing.T) {
	sqlDB, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	dbMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	srv, err := NewServerWithDeps(testConfig(), gormDB, nil, events.NopPublisher{})
	require.NoError(t, err)
	app := fiber.New()
	app.Get("/health/ready", srv.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestNewServerWithDepsRequiresDatabase(t *testing.T) {
	_, err := NewServerWithDeps(testConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestSecurityHeaders(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := api.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestAuthFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	api := newTestAPI(t, rdb, nil)
	alice := api.register("alice")

	t.Run("duplicate username", func(t *testing.T) {
		status, _ := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": testPassword,
		})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("weak password", func(t *testing.T) {
		status, _ := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "weakling",
			"email":    "weak@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("login", func(t *testing.T) {
		status, raw := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": testPassword,
		})
		require.Equal(t, http.StatusOK, status)
		var s session
		api.decode(raw, &s)
		assert.Equal(t, alice.Profile.ID, s.Profile.ID)

		status, _ = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "Wrong-Passw0rd!",
		})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("me", func(t *testing.T) {
		status, raw := api.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)
		var body struct {
			Profile models.Profile `json:"profile"`
		}
		api.decode(raw, &body)
		assert.Equal(t, "alice", body.Profile.Username)

		status, _ = api.do(http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = api.do(http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		status, _ := api.do(http.MethodPost, "/api/auth/logout", alice.Token, nil)
		require.Equal(t, http.StatusNoContent, status)

		status, _ = api.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestSocialFlow(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	api := newTestAPI(t, nil, pub)
	alice := api.register("alice")
	bob := api.register("bob")

	status, raw := api.do(http.MethodGet, "/api/feed", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var feed models.FeedPage
	api.decode(raw, &feed)
	assert.True(t, feed.EmptyGraph)
	require.Len(t, feed.Suggestions, 1)
	assert.Equal(t, "bob", feed.Suggestions[0].Username)

	post := api.createPost(bob.Token, "Shipping #GoLang today")
	assert.Equal(t, []string{"golang"}, post.Hashtags)

	status, raw = api.do(http.MethodPost, "/api/profiles/"+itoa(bob.Profile.ID)+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var follow models.ToggleResult
	api.decode(raw, &follow)
	assert.True(t, follow.Changed)
	assert.Equal(t, 1, follow.Count)

	status, raw = api.do(http.MethodGet, "/api/profiles/"+itoa(bob.Profile.ID)+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"following":true}`, string(raw))

	status, raw = api.do(http.MethodGet, "/api/feed", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	feed = models.FeedPage{}
	api.decode(raw, &feed)
	assert.False(t, feed.EmptyGraph)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, post.ID, feed.Posts[0].ID)

	status, raw = api.do(http.MethodPost, "/api/posts/"+itoa(post.ID)+"/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var like models.ToggleResult
	api.decode(raw, &like)
	assert.Equal(t, 1, like.Count)

	status, raw = api.do(http.MethodGet, "/api/posts/"+itoa(post.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var fetched models.Post
	api.decode(raw, &fetched)
	assert.True(t, fetched.Liked)
	assert.Equal(t, 1, fetched.LikesCount)

	status, raw = api.do(http.MethodPost, "/api/posts/"+itoa(post.ID)+"/comments", alice.Token, map[string]string{"body": "nice"})
	require.Equal(t, http.StatusCreated, status, string(raw))

	status, raw = api.do(http.MethodGet, "/api/posts/"+itoa(post.ID)+"/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	var comments []models.Comment
	api.decode(raw, &comments)
	assert.Len(t, comments, 1)

	status, _ = api.do(http.MethodDelete, "/api/posts/"+itoa(post.ID), alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Subject == events.SubjectProfileFollowed && ev.TargetProfileID == bob.Profile.ID
	}))
	pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Subject == events.SubjectPostLiked && ev.PostID == post.ID
	}))
}

func TestRetweetFlow(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	alice := api.register("alice")
	bob := api.register("bob")
	post := api.createPost(bob.Token, "original")

	status, raw := api.do(http.MethodPost, "/api/posts/"+itoa(post.ID)+"/retweet", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var res models.ToggleResult
	api.decode(raw, &res)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)

	status, raw = api.do(http.MethodGet, "/api/posts/"+itoa(post.ID)+"/retweets", "", nil)
	require.Equal(t, http.StatusOK, status)
	var retweeters []models.Profile
	api.decode(raw, &retweeters)
	require.Len(t, retweeters, 1)
	assert.Equal(t, "alice", retweeters[0].Username)

	status, raw = api.do(http.MethodGet, "/api/profiles/"+itoa(alice.Profile.ID)+"/retweets", "", nil)
	require.Equal(t, http.StatusOK, status)
	var retweeted []models.Post
	api.decode(raw, &retweeted)
	require.Len(t, retweeted, 1)
	assert.Equal(t, post.ID, retweeted[0].ID)

	status, raw = api.do(http.MethodDelete, "/api/posts/"+itoa(post.ID)+"/retweet", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	res = models.ToggleResult{}
	api.decode(raw, &res)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.Count)
}

func TestHashtagEndpoints(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	bob := api.register("bob")
	api.createPost(bob.Token, "#golang rocks")
	api.createPost(bob.Token, "more #golang and #gophers")

	status, raw := api.do(http.MethodGet, "/api/hashtags/search?q=go", "", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var tags []models.HashtagCount
	api.decode(raw, &tags)
	require.Len(t, tags, 2)
	assert.Equal(t, models.HashtagCount{Tag: "golang", Count: 2}, tags[0])

	status, raw = api.do(http.MethodGet, "/api/hashtags/trending", "", nil)
	require.Equal(t, http.StatusOK, status)
	var trending []models.TrendingHashtag
	api.decode(raw, &trending)
	require.Len(t, trending, 3)
	assert.Equal(t, "golang", trending[0].Hashtag)
	assert.Equal(t, "2 posts", trending[0].Label)
	assert.Equal(t, "javascript", trending[2].Hashtag)

	status, raw = api.do(http.MethodGet, "/api/hashtags/GoLang/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	var posts []models.Post
	api.decode(raw, &posts)
	assert.Len(t, posts, 2)
}

func TestProfileEndpoints(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	alice := api.register("alice")
	api.register("alan")

	status, raw := api.do(http.MethodGet, "/api/profiles/search?q=AL", "", nil)
	require.Equal(t, http.StatusOK, status)
	var found []models.Profile
	api.decode(raw, &found)
	assert.Len(t, found, 2)

	status, raw = api.do(http.MethodGet, "/api/profiles/by-username/alice", "", nil)
	require.Equal(t, http.StatusOK, status)
	var profile models.Profile
	api.decode(raw, &profile)
	assert.Equal(t, alice.Profile.ID, profile.ID)

	status, raw = api.do(http.MethodPatch, "/api/profiles/me", alice.Token, map[string]string{"bio": "  hello  "})
	require.Equal(t, http.StatusOK, status, string(raw))
	profile = models.Profile{}
	api.decode(raw, &profile)
	assert.Equal(t, "hello", profile.Bio)

	status, _ = api.do(http.MethodPatch, "/api/profiles/me", alice.Token, map[string]string{"avatar_url": "ftp://x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/profiles/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodGet, "/api/profiles/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPost, "/api/profiles/"+itoa(alice.Profile.ID)+"/follow", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	status, raw := api.do(http.MethodGet, "/api/feature-flags", "", nil)
	require.Equal(t, http.StatusOK, status)
	var body struct {
		Evaluated map[string]bool `json:"evaluated"`
	}
	api.decode(raw, &body)
	assert.True(t, body.Evaluated["feed_suggestions"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
