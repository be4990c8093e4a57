package repository

import (
	"context"
	"sync"
	"testing"

	"poststream/internal/models"
	"poststream/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_CreateIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	a := testutil.CreateProfile(t, db, "alice")
	b := testutil.CreateProfile(t, db, "bob")

	created, err := repo.Create(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID})
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, testutil.Reload(t, db, a).FollowingCount)
	assert.Equal(t, 1, testutil.Reload(t, db, b).FollowersCount)

	deleted, err := repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Equal(t, 0, testutil.Reload(t, db, a).FollowingCount)
	assert.Equal(t, 0, testutil.Reload(t, db, b).FollowersCount)
}

func TestFollowRepository_ConcurrentCreate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	a := testutil.CreateProfile(t, db, "alice")
	b := testutil.CreateProfile(t, db, "bob")

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.Create(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID})
			assert.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for created := range results {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, testutil.Reload(t, db, b).FollowersCount)
}

func TestFollowRepository_MissingProfileRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	a := testutil.CreateProfile(t, db, "alice")

	_, err := repo.Create(context.Background(), &models.Follow{FollowerID: a.ID, FollowingID: 999})
	assert.True(t, models.IsNotFound(err))

	exists, err := repo.Exists(context.Background(), a.ID, 999)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, testutil.Reload(t, db, a).FollowingCount)
}

func TestCounterDecrementIsFloored(t *testing.T) {
	db := testutil.NewTestDB(t)
	a := testutil.CreateProfile(t, db, "alice")

	require.NoError(t, adjustProfile(db, a.ID, colFollowers, -3))
	assert.Equal(t, 0, testutil.Reload(t, db, a).FollowersCount)

	require.NoError(t, adjustProfile(db, a.ID, colFollowers, 2))
	require.NoError(t, adjustProfile(db, a.ID, colFollowers, -5))
	assert.Equal(t, 0, testutil.Reload(t, db, a).FollowersCount)
}

func TestLikeRepository_Toggle(t *testing.T) {
	db := testutil.NewTestDB(t)
	posts := NewPostRepository(db)
	likes := NewLikeRepository(db)
	ctx := context.Background()

	author := testutil.CreateProfile(t, db, "author")
	fan := testutil.CreateProfile(t, db, "fan")
	post := &models.Post{AuthorID: author.ID, AuthorUsername: author.Username, Body: "hi"}
	require.NoError(t, posts.Create(ctx, post))

	created, err := likes.Create(ctx, &models.Like{UserID: fan.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = likes.Create(ctx, &models.Like{UserID: fan.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, testutil.ReloadPost(t, db, post.ID).LikesCount)

	ids, err := likes.LikedPostIDs(ctx, fan.ID, []uint{post.ID, 12345})
	require.NoError(t, err)
	assert.Equal(t, []uint{post.ID}, ids)

	deleted, err := likes.Delete(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, testutil.ReloadPost(t, db, post.ID).LikesCount)

	_, err = likes.Create(ctx, &models.Like{UserID: fan.ID, PostID: 4242})
	assert.True(t, models.IsNotFound(err))
}

func TestRetweetRepository_KeepsTrackingRowAndPostInSync(t *testing.T) {
	db := testutil.NewTestDB(t)
	posts := NewPostRepository(db)
	retweets := NewRetweetRepository(db)
	ctx := context.Background()

	author := testutil.CreateProfile(t, db, "author")
	fan := testutil.CreateProfile(t, db, "fan")
	original := &models.Post{AuthorID: author.ID, AuthorUsername: author.Username, Body: "hi"}
	require.NoError(t, posts.Create(ctx, original))

	newRetweet := func() (*models.Retweet, *models.Post) {
		origID := original.ID
		return &models.Retweet{UserID: fan.ID, PostID: original.ID, Username: fan.Username},
			&models.Post{AuthorID: fan.ID, AuthorUsername: fan.Username, IsRetweet: true, OriginalPostID: &origID}
	}

	rt, dup := newRetweet()
	created, err := retweets.Create(ctx, rt, dup)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, dup.ID)
	assert.Equal(t, dup.ID, rt.RetweetPostID)

	rt2, dup2 := newRetweet()
	created, err = retweets.Create(ctx, rt2, dup2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, dup2.ID)

	var dupCount, rtCount int64
	require.NoError(t, db.Model(&models.Post{}).Where("original_post_id = ?", original.ID).Count(&dupCount).Error)
	require.NoError(t, db.Model(&models.Retweet{}).Count(&rtCount).Error)
	assert.EqualValues(t, 1, dupCount)
	assert.EqualValues(t, 1, rtCount)
	assert.Equal(t, 1, testutil.ReloadPost(t, db, original.ID).RetweetsCount)

	deleted, err := retweets.Delete(ctx, fan.ID, original.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = retweets.Delete(ctx, fan.ID, original.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, db.Model(&models.Post{}).Where("original_post_id = ?", original.ID).Count(&dupCount).Error)
	require.NoError(t, db.Model(&models.Retweet{}).Count(&rtCount).Error)
	assert.Zero(t, dupCount)
	assert.Zero(t, rtCount)
	assert.Equal(t, 0, testutil.ReloadPost(t, db, original.ID).RetweetsCount)
}

func TestRetweetRepository_MissingOriginalRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	retweets := NewRetweetRepository(db)
	fan := testutil.CreateProfile(t, db, "fan")

	missing := uint(777)
	dup := &models.Post{AuthorID: fan.ID, AuthorUsername: fan.Username, IsRetweet: true, OriginalPostID: &missing}
	_, err := retweets.Create(context.Background(), &models.Retweet{UserID: fan.ID, PostID: missing}, dup)
	assert.True(t, models.IsNotFound(err))

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}
