package notifications

import (
	"context"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// Dispatcher delivers one notification per relevant post. It is never called
// for posts judged not relevant.
type Dispatcher interface {
	Notify(ctx context.Context, post models.Post, verdict models.Verdict) error
}

// SummarySink receives the end-of-run summary. Summary delivery is best
// effort; failures are logged, never fatal, and never block commits.
type SummarySink interface {
	SendRunSummary(ctx context.Context, summary models.RunSummary) error
}
