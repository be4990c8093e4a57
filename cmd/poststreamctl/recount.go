package main

import (
	"fmt"

	"poststream/internal/cache"
	"poststream/internal/seed"

	"github.com/spf13/cobra"
)

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Rebuild stored counters from the relationship tables",
	Long: `Recompute followersCount, followingCount and postsCount on every
profile and commentsCount, likesCount and retweetsCount on every post.
Use it to repair drift left by manual edits or imported data.

Cached profiles are dropped from Redis once the new counts are committed.
When REDIS_URL is unreachable, cached profiles keep their old counts until
the profile cache TTL expires.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := connect()
		if err != nil {
			return err
		}
		cache.InitRedis(cfg.RedisURL)

		res, err := seed.Recount(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recounted %d profiles and %d posts\n", res.Profiles, res.Posts)
		return nil
	},
}
