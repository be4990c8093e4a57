package models

// FeedPage is one page of the home timeline.
type FeedPage struct {
	Posts   []*Post `json:"posts"`
	HasMore bool    `json:"has_more"`
	// EmptyGraph is set when the viewer follows nobody, which callers render
	// differently from an empty timeline.
	EmptyGraph  bool       `json:"empty_graph"`
	Suggestions []*Profile `json:"suggestions,omitempty"`
}

// HashtagCount is a tag and how often it occurred in the scanned window.
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TrendingHashtag is a display-ready trending entry.
type TrendingHashtag struct {
	Hashtag string `json:"hashtag"`
	Title   string `json:"title"`
	Count   int    `json:"count"`
	Label   string `json:"label"`
}

// ToggleResult reports the outcome of a follow/like/retweet toggle.
type ToggleResult struct {
	Changed bool `json:"changed"`
	Active  bool `json:"active"`
	Count   int  `json:"count"`
}
