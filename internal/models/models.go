package models

import "time"

// Kinds of feed items flowing through the pipeline.
const (
	KindPost    = "post"
	KindComment = "comment"
	KindSearch  = "search"
)

// Post is a single feed item considered for notification: a forum submission,
// a comment, or a sitewide search hit.
type Post struct {
	ID             string    `json:"id"`    // feed GUID or canonical URL; sole dedup key
	Kind           string    `json:"kind"`  // KindPost, KindComment or KindSearch
	Forum          string    `json:"forum"` // source forum identifier, e.g. "gamedev"
	Title          string    `json:"title"`
	Body           string    `json:"body"` // markdown excerpt of the item content
	Author         string    `json:"author"`
	URL            string    `json:"url"`
	MatchedKeyword string    `json:"matched_keyword,omitempty"` // set on search hits only
	CreatedAt      time.Time `json:"created_at"`
}

// Verdict is the classifier's judgment on one post. It is never persisted;
// it lives only between classification and dispatch.
type Verdict struct {
	Relevant       bool   `json:"is_relevant"`
	Rationale      string `json:"reason"`
	SuggestedReply string `json:"reply_draft"` // empty unless Relevant
}

// ProcessedRecord is durable proof that a post identifier completed the
// pipeline. At most one exists per post ID.
type ProcessedRecord struct {
	PostID      string    `json:"post_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RunSummary captures the outcome of one pipeline run.
type RunSummary struct {
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration"`
	Fetched     int       `json:"fetched"`
	Skipped     int       `json:"skipped"`     // already processed in a prior run
	Prefiltered int       `json:"prefiltered"` // excluded by keyword before classification
	Classified  int       `json:"classified"`
	Relevant    int       `json:"relevant"`
	Notified    int       `json:"notified"`
	Failed      int       `json:"failed"`      // per-post failures left for the next run
	FeedErrors  int       `json:"feed_errors"` // whole-feed fetch failures, skipped for this run
}
