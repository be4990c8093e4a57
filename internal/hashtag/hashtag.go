// Package hashtag extracts hashtag tokens from post bodies and builds
// literal match patterns for hashtag and name search.
package hashtag

import (
	"regexp"
	"sort"
	"strings"
)

// MaxPerPost caps how many hashtags a single post contributes.
const MaxPerPost = 10

var tagPattern = regexp.MustCompile(`#\w+`)

// Extract returns up to MaxPerPost lowercase tags in first-seen order.
// Repeated tags are kept as written.
func Extract(body string) []string {
	matches := tagPattern.FindAllString(body, MaxPerPost)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.ToLower(strings.TrimPrefix(m, "#")))
	}
	return tags
}

// Normalize trims whitespace and a leading '#' and lowercases the tag.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes SQL LIKE wildcards so s matches literally when used
// with ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PrefixPattern builds a LIKE pattern matching tags that start with prefix.
func PrefixPattern(prefix string) string {
	return EscapeLike(Normalize(prefix)) + "%"
}

// ContainsPattern builds a lowercase LIKE pattern matching term anywhere.
func ContainsPattern(term string) string {
	return "%" + EscapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// Tally counts tags and returns them sorted by count desc, then tag asc.
// Tags not starting with prefix are skipped; an empty prefix keeps all.
func Tally(tags []string, prefix string, limit int) []Count {
	counts := make(map[string]int)
	for _, t := range tags {
		t = strings.ToLower(t)
		if t == "" || !strings.HasPrefix(t, prefix) {
			continue
		}
		counts[t]++
	}

	out := make([]Count, 0, len(counts))
	for tag, n := range counts {
		out = append(out, Count{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count is a tag with its occurrence count.
type Count struct {
	Tag   string
	Count int
}
