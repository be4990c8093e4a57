// Package seed loads demo data through the service layer so counters,
// hashtags and events stay consistent with normal writes.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"poststream/internal/events"
	"poststream/internal/models"
	"poststream/internal/repository"
	"poststream/internal/service"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "PostStream-Demo-2024!"

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixture describes a small, fixed social graph.
type Fixture struct {
	Users    []FixtureUser    `yaml:"users"`
	Posts    []FixturePost    `yaml:"posts"`
	Follows  []FixtureFollow  `yaml:"follows"`
	Comments []FixtureComment `yaml:"comments"`
}

type FixtureUser struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Bio       string `yaml:"bio"`
}

type FixturePost struct {
	Author string `yaml:"author"`
	Tag    string `yaml:"tag"`
	Body   string `yaml:"body"`
}

type FixtureFollow struct {
	Follower  string `yaml:"follower"`
	Following string `yaml:"following"`
}

// FixtureComment refers to its post by index into Fixture.Posts.
type FixtureComment struct {
	Post   int    `yaml:"post"`
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
}

// DefaultFixture returns the built-in demo fixture.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultFixtures)
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Result summarizes what a seed run created.
type Result struct {
	Profiles map[string]*models.Profile
	Posts    []*models.Post
	Comments int
	Follows  int
}

// Seeder writes fixtures through the same services the API uses.
type Seeder struct {
	db       *gorm.DB
	auth     *service.AuthService
	profiles *service.ProfileService
	posts    *service.PostService
	comments *service.CommentService
	graph    *service.GraphService
}

// NewSeeder wires services over db. Events are dropped and tokens issued
// during registration are discarded.
func NewSeeder(db *gorm.DB) *Seeder {
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	retweetRepo := repository.NewRetweetRepository(db)
	enricher := service.NewEnricher(postRepo, profileRepo, likeRepo, retweetRepo)
	nop := events.NopPublisher{}

	return &Seeder{
		db: db,
		auth: service.NewAuthService(accountRepo, profileRepo, service.AuthConfig{
			Secret:   uuid.NewString(),
			Issuer:   "poststream-seed",
			Audience: "poststream-seed",
		}).WithHashCost(bcrypt.MinCost),
		profiles: service.NewProfileService(profileRepo),
		posts:    service.NewPostService(postRepo, retweetRepo, profileRepo, enricher, nop),
		comments: service.NewCommentService(repository.NewCommentRepository(db), postRepo, profileRepo, enricher, nop),
		graph: service.NewGraphService(repository.NewFollowRepository(db), likeRepo, retweetRepo,
			postRepo, profileRepo, enricher, nop),
	}
}

// Seed loads f. Users that already exist are reused, so seeding twice
// adds posts and comments again but never duplicates accounts or follows.
func (s *Seeder) Seed(ctx context.Context, f *Fixture) (*Result, error) {
	res := &Result{Profiles: make(map[string]*models.Profile, len(f.Users))}

	for _, u := range f.Users {
		profile, err := s.ensureUser(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		res.Profiles[u.Username] = profile
	}

	lookup := func(username string) (*models.Profile, error) {
		if p, ok := res.Profiles[username]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("unknown fixture user %q", username)
	}

	for _, p := range f.Posts {
		author, err := lookup(p.Author)
		if err != nil {
			return nil, err
		}
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID: author.ID,
			Body:     p.Body,
			Tag:      p.Tag,
		})
		if err != nil {
			return nil, fmt.Errorf("seed post by %s: %w", p.Author, err)
		}
		res.Posts = append(res.Posts, post)
	}

	for _, fl := range f.Follows {
		follower, err := lookup(fl.Follower)
		if err != nil {
			return nil, err
		}
		following, err := lookup(fl.Following)
		if err != nil {
			return nil, err
		}
		r, err := s.graph.Follow(ctx, follower.ID, following.ID)
		if err != nil {
			return nil, fmt.Errorf("seed follow %s -> %s: %w", fl.Follower, fl.Following, err)
		}
		if r.Changed {
			res.Follows++
		}
	}

	for _, c := range f.Comments {
		if c.Post < 0 || c.Post >= len(res.Posts) {
			return nil, fmt.Errorf("comment references post %d of %d", c.Post, len(res.Posts))
		}
		author, err := lookup(c.Author)
		if err != nil {
			return nil, err
		}
		if _, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
			PostID:   res.Posts[c.Post].ID,
			AuthorID: author.ID,
			Body:     c.Body,
		}); err != nil {
			return nil, fmt.Errorf("seed comment by %s: %w", c.Author, err)
		}
		res.Comments++
	}

	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, u FixtureUser) (*models.Profile, error) {
	existing, err := s.profiles.GetByUsername(ctx, u.Username)
	if err == nil {
		return existing, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	session, err := s.auth.Register(ctx, service.RegisterInput{
		Username:  u.Username,
		Email:     u.Email,
		Password:  DemoPassword,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
	if err != nil {
		return nil, err
	}
	if u.Bio == "" {
		return session.Profile, nil
	}
	bio := u.Bio
	return s.profiles.UpdateProfile(ctx, session.Profile.ID, models.ProfileUpdate{Bio: &bio})
}

// ClearAll removes every row the service owns.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := models.All()
		for i := len(all) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(all[i]).Error; err != nil {
				return fmt.Errorf("clear %T: %w", all[i], err)
			}
		}
		return nil
	})
}
