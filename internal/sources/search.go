package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

var subredditFromLink = regexp.MustCompile(`/r/([^/]+)/`)

// RedditSearchSource yields new sitewide search hits for each configured
// keyword, catching leads outside the monitored forums.
type RedditSearchSource struct {
	client   *RedditClient
	keywords []string
	limit    int
}

var _ FeedSource = (*RedditSearchSource)(nil)

// NewRedditSearchSource creates a search source fetching up to limit results
// per keyword per call.
func NewRedditSearchSource(client *RedditClient, keywords []string, limit int) *RedditSearchSource {
	if limit <= 0 {
		limit = 10
	}
	return &RedditSearchSource{client: client, keywords: keywords, limit: limit}
}

func (r *RedditSearchSource) Name() string {
	return "reddit-search"
}

func (r *RedditSearchSource) Scopes() []string {
	return r.keywords
}

// Fetch downloads and parses /search.rss for one keyword. The forum of each
// hit is recovered from its link.
func (r *RedditSearchSource) Fetch(ctx context.Context, keyword string) ([]models.Post, error) {
	path := fmt.Sprintf("/search.rss?q=%s&sort=new&limit=%d", url.QueryEscape(keyword), r.limit)
	feed, err := r.client.fetchFeed(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}

	results := make([]models.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(results) >= r.limit {
			break
		}
		post := r.client.toPost(models.KindSearch, forumFromLink(item.Link), item)
		post.MatchedKeyword = keyword
		results = append(results, post)
	}

	logrus.Debugf("Search %q returned %d results", keyword, len(results))
	return results, nil
}

func forumFromLink(link string) string {
	if m := subredditFromLink.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return "unknown"
}
