package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"poststream/internal/cache"
	"poststream/internal/featureflags"
	"poststream/internal/hashtag"
	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/observability"
	"poststream/internal/repository"
	"poststream/internal/typeahead"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultHashtagResults  = 10
	DefaultTrendingResults = 3
	MaxTrendingResults     = 10
	MaxProfileResults      = 20
)

// fallbackTrending pads a short trending list.
var fallbackTrending = []models.HashtagCount{
	{Tag: "javascript", Count: 42},
	{Tag: "react", Count: 35},
	{Tag: "webdev", Count: 28},
}

type SearchConfig struct {
	HashtagWindow      int
	TrendingWindow     time.Duration
	TrendingFetchLimit int
	TrendingCacheTTL   time.Duration
}

// SearchService serves the explore page: hashtag and profile typeahead and
// trending hashtags. Discovery degrades instead of failing: a broken
// hashtag search answers with nothing and trending falls back to filler.
type SearchService struct {
	hashtags repository.HashtagRepository
	profiles repository.ProfileRepository
	gate     *typeahead.Gate
	flags    *featureflags.Manager
	cfg      SearchConfig
	now      func() time.Time
}

func NewSearchService(
	hashtags repository.HashtagRepository,
	profiles repository.ProfileRepository,
	gate *typeahead.Gate,
	flags *featureflags.Manager,
	cfg SearchConfig,
) *SearchService {
	if cfg.HashtagWindow <= 0 {
		cfg.HashtagWindow = 500
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = 7 * 24 * time.Hour
	}
	if cfg.TrendingFetchLimit <= 0 {
		cfg.TrendingFetchLimit = 1000
	}
	if cfg.TrendingCacheTTL <= 0 {
		cfg.TrendingCacheTTL = 5 * time.Minute
	}
	return &SearchService{
		hashtags: hashtags,
		profiles: profiles,
		gate:     gate,
		flags:    flags,
		cfg:      cfg,
		now:      time.Now,
	}
}

func recordSearch(kind string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, typeahead.ErrSuperseded):
		outcome = "superseded"
	case errors.Is(err, typeahead.ErrRateLimited):
		outcome = "rate_limited"
	case err != nil:
		outcome = "error"
	}
	observability.SearchRequests.WithLabelValues(kind, outcome).Inc()
}

// SearchHashtags tallies tags starting with prefix over the most recent
// window of hashtag rows and returns the top limit by count. Counts are
// relative to that window, not global. The prefix always matches
// literally. key identifies the caller for superseding.
func (s *SearchService) SearchHashtags(ctx context.Context, key, prefix string, limit int) ([]models.HashtagCount, error) {
	prefix = hashtag.Normalize(prefix)
	if prefix == "" {
		return []models.HashtagCount{}, nil
	}
	if limit <= 0 {
		limit = DefaultHashtagResults
	}

	result, err := typeahead.Do(ctx, s.gate, "hashtags:"+key, func(ctx context.Context) ([]models.HashtagCount, error) {
		tags, err := s.hashtags.TagsWithPrefix(ctx, hashtag.PrefixPattern(prefix), s.cfg.HashtagWindow)
		if err != nil {
			return nil, err
		}
		counts := hashtag.Tally(tags, prefix, limit)
		out := make([]models.HashtagCount, 0, len(counts))
		for _, c := range counts {
			out = append(out, models.HashtagCount{Tag: c.Tag, Count: c.Count})
		}
		return out, nil
	})
	recordSearch("hashtag", err)
	if err != nil {
		if isGateError(ctx, err) {
			return nil, err
		}
		middleware.Logger.WarnContext(ctx, "hashtag search failed", "prefix", prefix, "error", err)
		return []models.HashtagCount{}, nil
	}
	return result, nil
}

// SearchProfiles matches term anywhere in username, first or last name,
// case-insensitively.
func (s *SearchService) SearchProfiles(ctx context.Context, key, term string) ([]*models.Profile, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*models.Profile{}, nil
	}

	result, err := typeahead.Do(ctx, s.gate, "profiles:"+key, func(ctx context.Context) ([]*models.Profile, error) {
		return s.profiles.Search(ctx, hashtag.ContainsPattern(term), MaxProfileResults)
	})
	recordSearch("profile", err)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []*models.Profile{}
	}
	return result, nil
}

// isGateError reports errors that belong to the caller rather than the store.
func isGateError(ctx context.Context, err error) bool {
	return errors.Is(err, typeahead.ErrSuperseded) ||
		errors.Is(err, typeahead.ErrRateLimited) ||
		ctx.Err() != nil
}

// Trending ranks hashtags used within the trending window. Fewer than
// limit distinct tags are padded from the fallback list when enabled.
// limit is capped at MaxTrendingResults, which also bounds the number of
// cached variants.
func (s *SearchService) Trending(ctx context.Context, limit int) ([]models.TrendingHashtag, error) {
	if limit <= 0 {
		limit = DefaultTrendingResults
	}
	if limit > MaxTrendingResults {
		limit = MaxTrendingResults
	}

	ctx, end := observability.StartSpan(ctx, "hashtags.trending", attribute.Int("limit", limit))
	var counts []models.HashtagCount
	err := cache.Aside(ctx, cache.TrendingKey(limit), &counts, s.cfg.TrendingCacheTTL, func() error {
		since := s.now().Add(-s.cfg.TrendingWindow)
		tags, err := s.hashtags.TagsSince(ctx, since, s.cfg.TrendingFetchLimit)
		if err != nil {
			return err
		}
		counts = counts[:0]
		for _, c := range hashtag.Tally(tags, "", limit) {
			counts = append(counts, models.HashtagCount{Tag: c.Tag, Count: c.Count})
		}
		return nil
	})
	end(err)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "trending hashtags unavailable", "error", err)
		counts = nil
	}

	if s.flags == nil || s.flags.Enabled(featureflags.TrendingFallback, 0) {
		counts = padTrending(counts, limit)
	}

	out := make([]models.TrendingHashtag, 0, len(counts))
	for _, c := range counts {
		out = append(out, trendingEntry(c))
	}
	return out, nil
}

func padTrending(counts []models.HashtagCount, limit int) []models.HashtagCount {
	seen := make(map[string]bool, len(counts))
	for _, c := range counts {
		seen[c.Tag] = true
	}
	for _, f := range fallbackTrending {
		if len(counts) >= limit {
			break
		}
		if !seen[f.Tag] {
			counts = append(counts, f)
		}
	}
	return counts
}

func trendingEntry(c models.HashtagCount) models.TrendingHashtag {
	label := fmt.Sprintf("%d posts", c.Count)
	if c.Count == 1 {
		label = "1 post"
	}
	return models.TrendingHashtag{
		Hashtag: c.Tag,
		Title:   "#" + c.Tag,
		Count:   c.Count,
		Label:   label,
	}
}
