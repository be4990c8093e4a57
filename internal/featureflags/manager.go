// Package featureflags evaluates rollout flags from a comma-separated list.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags understood by the service.
const (
	// FeedSuggestions attaches follow suggestions to an empty-graph feed.
	FeedSuggestions = "feed_suggestions"
	// TrendingFallback pads short trending lists with the fixed fallback tags.
	TrendingFallback = "trending_fallback"
)

// Manager evaluates feature flags defined in a simple key=value list, for
// example "feed_suggestions=on,trending_fallback=25%". A bare name is on.
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = normalize(key)
		value = normalize(value)
		if !found {
			value = "on"
		}
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given profile. Values are
// on/true/1, off/false/0, or N% for a deterministic per-profile rollout.
func (m *Manager) Enabled(name string, profileID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if profileID == 0 {
		return false
	}
	return rolloutBucket(name, profileID) < pct
}

// Snapshot returns evaluated flag status for one profile.
func (m *Manager) Snapshot(profileID uint) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, profileID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, profileID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), profileID)))
	return int(h.Sum32() % 100)
}
