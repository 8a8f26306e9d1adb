package sources

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// RedditCommentSource yields new comments from each configured subreddit.
// Comment entries carry the parent submission's title as context.
type RedditCommentSource struct {
	client *RedditClient
	forums []string
	limit  int
}

var _ FeedSource = (*RedditCommentSource)(nil)

// NewRedditCommentSource creates a comment source fetching up to limit
// comments per forum per call.
func NewRedditCommentSource(client *RedditClient, forums []string, limit int) *RedditCommentSource {
	if limit <= 0 {
		limit = 25
	}
	return &RedditCommentSource{client: client, forums: forums, limit: limit}
}

func (r *RedditCommentSource) Name() string {
	return "reddit-comments"
}

func (r *RedditCommentSource) Scopes() []string {
	return r.forums
}

// Fetch downloads and parses /r/<forum>/comments.rss.
func (r *RedditCommentSource) Fetch(ctx context.Context, forum string) ([]models.Post, error) {
	feed, err := r.client.fetchFeed(ctx, fmt.Sprintf("/r/%s/comments.rss?limit=%d", forum, r.limit))
	if err != nil {
		return nil, fmt.Errorf("r/%s comments: %w", forum, err)
	}

	comments := make([]models.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(comments) >= r.limit {
			break
		}
		comments = append(comments, r.client.toPost(models.KindComment, forum, item))
	}

	logrus.Debugf("Fetched %d comments from r/%s", len(comments), forum)
	return comments, nil
}
