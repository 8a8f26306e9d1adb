// Package pipeline drives one end-to-end run: fetch candidate items from
// every configured feed, drop already-processed ones, classify the rest,
// notify for relevant verdicts, and commit terminal outcomes to the dedup
// store.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/classifier"
	"github.com/wefunai/reddit-leads-bot/internal/config"
	"github.com/wefunai/reddit-leads-bot/internal/dedup"
	"github.com/wefunai/reddit-leads-bot/internal/models"
	"github.com/wefunai/reddit-leads-bot/internal/notifications"
	"github.com/wefunai/reddit-leads-bot/internal/sources"
)

// ErrRunInProgress is returned when a run is triggered while another one is
// still going. The dedup store is not safe for concurrent writers, so
// overlapping runs are rejected rather than queued.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// Service orchestrates pipeline runs. Per-post and per-feed failures are
// isolated to their own scope; only a corrupt dedup store aborts a run.
type Service struct {
	config       *config.Config
	feeds        []sources.FeedSource
	store        *dedup.Store
	classifier   classifier.Classifier
	dispatcher   notifications.Dispatcher
	summarySinks []notifications.SummarySink

	runMu   sync.Mutex
	metrics struct {
		sync.RWMutex
		last models.RunSummary
	}
}

// NewService wires the orchestrator. Feeds are polled in order; summarySinks
// may be empty.
func NewService(cfg *config.Config, feeds []sources.FeedSource, store *dedup.Store,
	cls classifier.Classifier, dispatcher notifications.Dispatcher,
	summarySinks ...notifications.SummarySink) *Service {
	return &Service{
		config:       cfg,
		feeds:        feeds,
		store:        store,
		classifier:   cls,
		dispatcher:   dispatcher,
		summarySinks: summarySinks,
	}
}

// Run performs one full pipeline pass over all configured feeds. It returns
// an error only for conditions that abort the run (an in-flight run, or a
// corrupt dedup store); ordinary per-post failures are counted and retried
// next run.
func (s *Service) Run(ctx context.Context) error {
	if !s.runMu.TryLock() {
		logrus.Warn("Run triggered while previous run still in progress, skipping")
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()
	logrus.Info("Starting pipeline run")

	if err := s.store.Load(ctx); err != nil {
		var corrupt *dedup.CorruptError
		if errors.As(err, &corrupt) {
			logrus.Errorf("Dedup store is corrupt, aborting run: %v", err)
		}
		return fmt.Errorf("failed to load dedup store: %w", err)
	}

	summary := models.RunSummary{StartedAt: start.UTC()}

	for _, feed := range s.feeds {
		for _, scope := range feed.Scopes() {
			posts, err := feed.Fetch(ctx, scope)
			if err != nil {
				logrus.Errorf("Failed to fetch %s %q, skipping feed: %v", feed.Name(), scope, err)
				summary.FeedErrors++
				continue
			}
			logrus.Infof("Fetched %d items from %s %q", len(posts), feed.Name(), scope)

			for _, post := range posts {
				s.processPost(ctx, post, &summary)
			}
		}
	}

	summary.Duration = time.Since(start).String()
	s.setMetrics(summary)

	logrus.WithFields(logrus.Fields{
		"fetched":     summary.Fetched,
		"skipped":     summary.Skipped,
		"prefiltered": summary.Prefiltered,
		"classified":  summary.Classified,
		"relevant":    summary.Relevant,
		"notified":    summary.Notified,
		"failed":      summary.Failed,
		"feed_errors": summary.FeedErrors,
		"duration":    summary.Duration,
	}).Info("Pipeline run completed")

	if summary.Relevant > 0 {
		s.sendSummaries(ctx, summary)
	}

	return nil
}

// processPost takes one post to a terminal outcome or leaves it uncommitted
// for the next run. It never returns an error: every failure here is
// per-post and isolated.
func (s *Service) processPost(ctx context.Context, post models.Post, summary *models.RunSummary) {
	summary.Fetched++

	if s.store.Contains(post.ID) {
		logrus.Tracef("Skipping already-processed post %s", post.ID)
		summary.Skipped++
		return
	}

	// Keyword prefilter: an obvious miss is a terminal negative without
	// spending a classification call.
	if s.isExcluded(post) {
		summary.Prefiltered++
		s.commit(ctx, post, summary)
		return
	}

	verdict, err := s.classifier.Classify(ctx, post)
	if err != nil {
		logrus.Errorf("Classification failed for %s, will retry next run: %v", post.ID, err)
		summary.Failed++
		return
	}
	summary.Classified++

	if verdict.Relevant {
		summary.Relevant++
		if err := s.dispatcher.Notify(ctx, post, verdict); err != nil {
			// Not committed: the post is re-notified next run. A duplicate
			// card on a lost-response failure is the accepted tradeoff.
			logrus.Errorf("Notification failed for %s, will retry next run: %v", post.ID, err)
			summary.Failed++
			return
		}
		summary.Notified++
		logrus.Infof("Notified lead %q from r/%s", post.Title, post.Forum)
	} else {
		logrus.Debugf("Post %s judged not relevant: %s", post.ID, verdict.Rationale)
	}

	s.commit(ctx, post, summary)
}

func (s *Service) commit(ctx context.Context, post models.Post, summary *models.RunSummary) {
	if err := s.store.Commit(ctx, post.ID); err != nil {
		logrus.Errorf("Failed to commit %s, will reprocess next run: %v", post.ID, err)
		summary.Failed++
	}
}

// isExcluded checks title+body against the configured exclude keywords.
func (s *Service) isExcluded(post models.Post) bool {
	if len(s.config.ExcludeKeywords) == 0 {
		return false
	}

	text := strings.ToLower(post.Title + " " + post.Body)
	for _, kw := range s.config.ExcludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			logrus.Debugf("Post %s excluded by keyword %q", post.ID, kw)
			return true
		}
	}
	return false
}

func (s *Service) sendSummaries(ctx context.Context, summary models.RunSummary) {
	for _, sink := range s.summarySinks {
		if err := sink.SendRunSummary(ctx, summary); err != nil {
			logrus.Errorf("Failed to send run summary: %v", err)
		}
	}
}

func (s *Service) setMetrics(summary models.RunSummary) {
	s.metrics.Lock()
	defer s.metrics.Unlock()
	s.metrics.last = summary
}

// LastRun returns the most recent run summary.
func (s *Service) LastRun() models.RunSummary {
	s.metrics.RLock()
	defer s.metrics.RUnlock()
	return s.metrics.last
}

// GetMetrics returns the last run summary as indented JSON for the /metrics
// endpoint.
func (s *Service) GetMetrics() string {
	s.metrics.RLock()
	defer s.metrics.RUnlock()

	data, _ := json.MarshalIndent(s.metrics.last, "", "  ")
	return string(data)
}
