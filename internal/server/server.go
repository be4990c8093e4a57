// Package server contains the HTTP handlers and routing for the PostStream API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poststream/internal/cache"
	"poststream/internal/config"
	"poststream/internal/database"
	"poststream/internal/events"
	"poststream/internal/featureflags"
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/notifications"
	"poststream/internal/repository"
	"poststream/internal/service"
	"poststream/internal/typeahead"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	publisher      events.Publisher
	featureFlags   *featureflags.Manager

	authService    *service.AuthService
	profileService *service.ProfileService
	postService    *service.PostService
	commentService *service.CommentService
	graphService   *service.GraphService
	feedService    *service.FeedService
	searchService  *service.SearchService
}

// NewServer connects to the database, Redis and NATS described by cfg.
// Redis and NATS are optional: without them caching and event delivery
// are disabled.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(events.Config{URL: cfg.NATSURL, Name: "poststream-api"})
		if err != nil {
			middleware.Logger.Warn("NATS unavailable, domain events disabled", "error", err)
		} else {
			publisher = nats
		}
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), publisher)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with SQLite, miniredis and a fake publisher.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher events.Publisher) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server: config and database are required")
	}

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	retweetRepo := repository.NewRetweetRepository(db)
	hashtagRepo := repository.NewHashtagRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	dispatcher := notifications.NewDispatcher(publisher, notifications.NewNotifier(redisClient))
	enricher := service.NewEnricher(postRepo, profileRepo, likeRepo, retweetRepo)
	gate := typeahead.NewGate(typeahead.Config{
		Debounce: cfg.SearchDebounce,
		RPS:      cfg.SearchRPS,
		Burst:    cfg.SearchBurst,
	})

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("poststream-api"),
		publisher:      publisher,
		featureFlags:   flags,
	}
	s.authService = service.NewAuthService(accountRepo, profileRepo, service.AuthConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
	s.profileService = service.NewProfileService(profileRepo)
	s.postService = service.NewPostService(postRepo, retweetRepo, profileRepo, enricher, dispatcher)
	s.commentService = service.NewCommentService(commentRepo, postRepo, profileRepo, enricher, dispatcher)
	s.graphService = service.NewGraphService(followRepo, likeRepo, retweetRepo, postRepo, profileRepo, enricher, dispatcher)
	s.feedService = service.NewFeedService(followRepo, postRepo, profileRepo, enricher, flags)
	s.searchService = service.NewSearchService(hashtagRepo, profileRepo, gate, flags, service.SearchConfig{
		HashtagWindow:      cfg.HashtagSearchWindow,
		TrendingWindow:     cfg.TrendingWindow,
		TrendingFetchLimit: cfg.TrendingFetchLimit,
		TrendingCacheTTL:   cfg.TrendingCacheTTL,
	})
	return s, nil
}

// NewApp builds a Fiber app with the server's middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "PostStream API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	if s.config.RateLimitRequests > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.RateLimitRequests,
			Expiration: s.config.RateLimitWindow,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
					Error: "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	requireAuth := middleware.AuthRequired(s.verifyToken)
	optionalAuth := middleware.OptionalAuth(s.verifyToken)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", requireAuth, s.Logout)
	auth.Get("/me", requireAuth, s.Me)

	api.Get("/feature-flags", optionalAuth, s.GetFeatureFlags)

	profiles := api.Group("/profiles")
	// specific routes before /:id
	profiles.Get("/top", optionalAuth, s.GetTopProfiles)
	profiles.Get("/search", optionalAuth, s.SearchProfiles)
	profiles.Get("/by-username/:username", s.GetProfileByUsername)
	profiles.Patch("/me", requireAuth, s.UpdateMyProfile)
	profiles.Get("/:id/posts", optionalAuth, s.GetProfilePosts)
	profiles.Get("/:id/followers", s.GetFollowers)
	profiles.Get("/:id/following", s.GetFollowing)
	profiles.Get("/:id/likes", optionalAuth, s.GetLikedPosts)
	profiles.Get("/:id/retweets", optionalAuth, s.GetRetweetedPosts)
	profiles.Get("/:id/follow", requireAuth, s.GetFollowStatus)
	profiles.Post("/:id/follow", requireAuth, middleware.RateLimit(s.redis, 60, time.Minute, "follow"), s.Follow)
	profiles.Delete("/:id/follow", requireAuth, s.Unfollow)
	profiles.Get("/:id", s.GetProfile)

	api.Get("/feed", requireAuth, s.GetFeed)

	posts := api.Group("/posts")
	posts.Get("/", optionalAuth, s.GetPosts)
	posts.Post("/", requireAuth, middleware.RateLimit(s.redis, 30, time.Minute, "create_post"), s.CreatePost)
	posts.Get("/search", optionalAuth, middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchPosts)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", requireAuth, middleware.RateLimit(s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/like", requireAuth, s.LikePost)
	posts.Delete("/:id/like", requireAuth, s.UnlikePost)
	posts.Get("/:id/likes", s.GetPostLikers)
	posts.Post("/:id/retweet", requireAuth, s.Retweet)
	posts.Delete("/:id/retweet", requireAuth, s.Unretweet)
	posts.Get("/:id/retweets", s.GetPostRetweeters)
	posts.Get("/:id", optionalAuth, s.GetPost)
	posts.Delete("/:id", requireAuth, s.DeletePost)

	hashtags := api.Group("/hashtags")
	hashtags.Get("/search", optionalAuth, s.SearchHashtags)
	hashtags.Get("/trending", s.GetTrending)
	hashtags.Get("/:tag/posts", optionalAuth, s.GetHashtagPosts)
}

// verifyToken adapts the auth service to the auth middleware.
func (s *Server) verifyToken(ctx context.Context, token string) (*middleware.Principal, error) {
	claims, err := s.authService.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	profileID, err := s.authService.ViewerProfileID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{
		AccountID: claims.AccountID,
		ProfileID: profileID,
		Username:  claims.Username,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database answers. Redis is optional
// and only reported.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		middleware.Logger.WarnContext(ctx, "readiness: database ping failed", "error", err)
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "degraded"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns the flags as evaluated for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"evaluated": s.featureFlags.Snapshot(middleware.ViewerID(c))})
}

// Start listens on the configured port until the app is shut down.
func (s *Server) Start() error {
	app := s.app
	if app == nil {
		app = s.NewApp()
	}
	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if closer, ok := s.publisher.(interface{ Close() }); ok {
		closer.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
