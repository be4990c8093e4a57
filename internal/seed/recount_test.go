package seed

import (
	"context"
	"testing"
	"time"

	"poststream/internal/cache"
	"poststream/internal/models"
	"poststream/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecountRepairsCountersAndDropsCachedProfiles(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	ctx := context.Background()
	db := testutil.NewTestDB(t)
	f, err := DefaultFixture()
	require.NoError(t, err)
	res, err := NewSeeder(db).Seed(ctx, f)
	require.NoError(t, err)

	jane := res.Profiles["janedoe"]
	require.NoError(t, db.Model(&models.Profile{}).Where("id = ?", jane.ID).
		Updates(map[string]any{"followers_count": 99, "posts_count": 0}).Error)

	var stale models.Profile
	require.NoError(t, db.First(&stale, jane.ID).Error)
	require.NoError(t, cache.SetJSON(ctx, cache.ProfileKey(jane.ID), stale, time.Minute))
	require.True(t, mr.Exists(cache.ProfileKey(jane.ID)))

	out, err := Recount(ctx, db)
	require.NoError(t, err)
	assert.EqualValues(t, len(f.Users), out.Profiles)
	assert.EqualValues(t, len(f.Posts), out.Posts)

	var fresh models.Profile
	require.NoError(t, db.First(&fresh, jane.ID).Error)
	assert.Equal(t, 1, fresh.FollowersCount)
	assert.Equal(t, 2, fresh.PostsCount)
	assert.False(t, mr.Exists(cache.ProfileKey(jane.ID)))
}

func TestRecountWithoutRedis(t *testing.T) {
	cache.SetClient(nil)
	db := testutil.NewTestDB(t)

	out, err := Recount(context.Background(), db)
	require.NoError(t, err)
	assert.Zero(t, out.Profiles)
	assert.Zero(t, out.Posts)
}
