package main

import (
	"fmt"
	"os"
	"time"

	"poststream/internal/seed"

	"github.com/spf13/cobra"
)

var (
	seedClean      bool
	seedFile       string
	seedUsers      int
	seedPosts      int
	seedFollows    int
	seedRandomSeed int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo data",
	Long: `Load the built-in demo fixture (janedoe, johnmayer, adalovelace) or a
YAML fixture file, then optionally generate random bulk data.

Examples:
  poststreamctl seed --clean
  poststreamctl seed --file fixtures.yaml
  poststreamctl seed --users 50 --posts 300`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedClean, "clean", false, "Delete all rows before seeding")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML fixture file (default: built-in demo fixture)")
	seedCmd.Flags().IntVar(&seedUsers, "users", 0, "Random users to generate")
	seedCmd.Flags().IntVar(&seedPosts, "posts", 0, "Random posts to generate")
	seedCmd.Flags().IntVar(&seedFollows, "follows", 3, "Follows per random user")
	seedCmd.Flags().Int64Var(&seedRandomSeed, "seed", 0, "Random seed (default: current time)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	_, db, err := connect()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	seeder := seed.NewSeeder(db)

	if seedClean {
		if err := seeder.ClearAll(ctx); err != nil {
			return err
		}
	}

	fixture, err := loadFixture()
	if err != nil {
		return err
	}
	res, err := seeder.Seed(ctx, fixture)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fixture: %d profiles, %d posts, %d follows, %d comments\n",
		len(res.Profiles), len(res.Posts), res.Follows, res.Comments)

	if seedUsers > 0 {
		rs := seedRandomSeed
		if rs == 0 {
			rs = time.Now().UnixNano()
		}
		bulk := seed.NewFactory(rs).Bulk(seedUsers, seedPosts, seedFollows)
		res, err := seeder.Seed(ctx, bulk)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "bulk: %d profiles, %d posts, %d follows, %d comments (seed %d)\n",
			len(res.Profiles), len(res.Posts), res.Follows, res.Comments, rs)
	}
	fmt.Fprintf(out, "demo password: %s\n", seed.DemoPassword)
	return nil
}

func loadFixture() (*seed.Fixture, error) {
	if seedFile == "" {
		return seed.DefaultFixture()
	}
	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return seed.ParseFixture(raw)
}
