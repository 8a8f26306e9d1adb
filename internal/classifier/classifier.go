// Package classifier decides whether a post is a potential lead for the
// product by asking an OpenAI-compatible chat model for a structured verdict.
package classifier

import (
	"context"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// Classifier produces a relevance verdict for one post. Implementations
// return either a well-formed verdict or an error, never a silent default:
// the orchestrator must be able to tell "not relevant" from "could not tell".
type Classifier interface {
	Classify(ctx context.Context, post models.Post) (models.Verdict, error)
}
