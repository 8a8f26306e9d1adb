package sources

import (
	"context"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// FeedSource yields the currently-visible items of one feed scope: a forum
// name for post and comment feeds, a search keyword for search feeds. A fetch
// error is scoped to that one feed; the orchestrator logs it and moves on.
type FeedSource interface {
	Name() string
	Scopes() []string
	Fetch(ctx context.Context, scope string) ([]models.Post, error)
}
