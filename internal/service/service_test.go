package service

import (
	"context"
	"sync"
	"testing"

	"poststream/internal/events"
	"poststream/internal/featureflags"
	"poststream/internal/models"
	"poststream/internal/repository"
	"poststream/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Subject)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	pub      *recordingPublisher
	posts    *PostService
	comments *CommentService
	graph    *GraphService
	feed     *FeedService
	search   *SearchService
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)

	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	retweetRepo := repository.NewRetweetRepository(db)
	followRepo := repository.NewFollowRepository(db)
	enricher := NewEnricher(postRepo, profileRepo, likeRepo, retweetRepo)
	pub := &recordingPublisher{}
	flags := featureflags.NewManager("feed_suggestions=on,trending_fallback=on")

	return &fixture{
		db:       db,
		pub:      pub,
		posts:    NewPostService(postRepo, retweetRepo, profileRepo, enricher, pub),
		comments: NewCommentService(repository.NewCommentRepository(db), postRepo, profileRepo, enricher, pub),
		graph:    NewGraphService(followRepo, likeRepo, retweetRepo, postRepo, profileRepo, enricher, pub),
		feed:     NewFeedService(followRepo, postRepo, profileRepo, enricher, flags),
		search:   NewSearchService(repository.NewHashtagRepository(db), profileRepo, nil, flags, SearchConfig{}),
		profiles: NewProfileService(profileRepo),
	}
}

func (f *fixture) post(t *testing.T, author *models.Profile, body string) *models.Post {
	t.Helper()
	p, err := f.posts.CreatePost(context.Background(), CreatePostInput{AuthorID: author.ID, Body: body})
	require.NoError(t, err)
	return p
}
