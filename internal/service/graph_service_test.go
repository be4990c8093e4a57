package service

import (
	"context"
	"sync"
	"testing"

	"poststream/internal/events"
	"poststream/internal/models"
	"poststream/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphService_FollowIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateProfile(t, f.db, "alice")
	bob := testutil.CreateProfile(t, f.db, "bob")

	res, err := f.graph.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)

	res, err = f.graph.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.Count)

	following, err := f.graph.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, 1, testutil.Reload(t, f.db, alice).FollowingCount)

	res, err = f.graph.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.Count)

	res, err = f.graph.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, testutil.Reload(t, f.db, bob).FollowersCount)
	assert.Equal(t, 0, testutil.Reload(t, f.db, alice).FollowingCount)

	assert.Equal(t, []string{events.SubjectProfileFollowed}, f.pub.subjects())
}

func TestGraphService_SelfFollowRejected(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice")

	_, err := f.graph.Follow(context.Background(), alice.ID, alice.ID)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestGraphService_FollowUnknownProfile(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateProfile(t, f.db, "alice")

	_, err := f.graph.Follow(context.Background(), alice.ID, 9999)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestGraphService_ConcurrentLikesCountOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateProfile(t, f.db, "alice")
	bob := testutil.CreateProfile(t, f.db, "bob")
	post := f.post(t, alice, "hello")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.graph.Like(ctx, bob.ID, post.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, testutil.ReloadPost(t, f.db, post.ID).LikesCount)

	res, err := f.graph.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.Count)

	res, err = f.graph.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, testutil.ReloadPost(t, f.db, post.ID).LikesCount)
}

func TestGraphService_RetweetLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateProfile(t, f.db, "alice")
	bob := testutil.CreateProfile(t, f.db, "bob")
	carol := testutil.CreateProfile(t, f.db, "carol")
	original := f.post(t, alice, "worth sharing #go")

	res, err := f.graph.Retweet(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Count)

	res, err = f.graph.Retweet(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.Count)

	var dupes []models.Post
	require.NoError(t, f.db.Where("is_retweet = ?", true).Find(&dupes).Error)
	require.Len(t, dupes, 1)
	assert.Equal(t, bob.ID, dupes[0].AuthorID)
	require.NotNil(t, dupes[0].OriginalPostID)
	assert.Equal(t, original.ID, *dupes[0].OriginalPostID)

	// retweeting the retweet targets the original
	res, err = f.graph.Retweet(ctx, carol.ID, dupes[0].ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Count)

	// liking a retweet likes the original
	_, err = f.graph.Like(ctx, carol.ID, dupes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.ReloadPost(t, f.db, original.ID).LikesCount)

	retweeters, err := f.graph.PostRetweeters(ctx, original.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, retweeters, 2)
	assert.Equal(t, carol.ID, retweeters[0].ID)

	res, err = f.graph.Unretweet(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Count)

	var remaining int64
	require.NoError(t, f.db.Model(&models.Post{}).Where("is_retweet = ? AND author_id = ?", true, bob.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	// retweets never count as the retweeter's posts
	assert.Equal(t, 0, testutil.Reload(t, f.db, bob).PostsCount)
}

func TestGraphService_Lists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateProfile(t, f.db, "alice")
	bob := testutil.CreateProfile(t, f.db, "bob")
	carol := testutil.CreateProfile(t, f.db, "carol")

	_, err := f.graph.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.graph.Follow(ctx, carol.ID, alice.ID)
	require.NoError(t, err)

	followers, err := f.graph.Followers(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, carol.ID, followers[0].ID)

	following, err := f.graph.Following(ctx, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, alice.ID, following[0].ID)

	p1 := f.post(t, alice, "first")
	p2 := f.post(t, alice, "second")
	_, err = f.graph.Like(ctx, bob.ID, p1.ID)
	require.NoError(t, err)
	_, err = f.graph.Like(ctx, bob.ID, p2.ID)
	require.NoError(t, err)

	liked, err := f.graph.LikedPosts(ctx, bob.ID, 10, 0, bob.ID)
	require.NoError(t, err)
	require.Len(t, liked, 2)
	assert.Equal(t, p2.ID, liked[0].ID)
	assert.True(t, liked[0].Liked)
	require.NotNil(t, liked[0].Author)
	assert.Equal(t, "alice", liked[0].Author.Username)

	likers, err := f.graph.PostLikers(ctx, p1.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, bob.ID, likers[0].ID)
}
