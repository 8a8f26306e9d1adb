package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wefunai/reddit-leads-bot/internal/config"
	"github.com/wefunai/reddit-leads-bot/internal/dedup"
	"github.com/wefunai/reddit-leads-bot/internal/models"
	"github.com/wefunai/reddit-leads-bot/internal/sources"
	"github.com/wefunai/reddit-leads-bot/internal/storage"
)

// MockSource is a mock feed source
type MockSource struct {
	mock.Mock
	name   string
	scopes []string
}

func (m *MockSource) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock"
}

func (m *MockSource) Scopes() []string {
	return m.scopes
}

func (m *MockSource) Fetch(ctx context.Context, scope string) ([]models.Post, error) {
	args := m.Called(ctx, scope)
	var posts []models.Post
	if v := args.Get(0); v != nil {
		posts = v.([]models.Post)
	}
	return posts, args.Error(1)
}

// MockClassifier is a mock relevance classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, post models.Post) (models.Verdict, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(models.Verdict), args.Error(1)
}

// MockDispatcher is a mock notification dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Notify(ctx context.Context, post models.Post, verdict models.Verdict) error {
	args := m.Called(ctx, post, verdict)
	return args.Error(0)
}

func (m *MockDispatcher) SendRunSummary(ctx context.Context, summary models.RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *MockSource, *MockClassifier, *MockDispatcher, *dedup.Store, string) {
	t.Helper()

	dir := t.TempDir()
	backend, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := dedup.NewStore(backend, "processed.json", 0)

	source := &MockSource{scopes: cfg.Forums}
	cls := &MockClassifier{}
	dispatcher := &MockDispatcher{}
	dispatcher.On("SendRunSummary", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewService(cfg, []sources.FeedSource{source}, store, cls, dispatcher, dispatcher)
	return svc, source, cls, dispatcher, store, filepath.Join(dir, "processed.json")
}

func testConfig() *config.Config {
	return &config.Config{
		Forums: []string{"gamedev"},
	}
}

func post(id string) models.Post {
	return models.Post{
		ID:    id,
		Forum: "gamedev",
		Title: "Title of " + id,
		Body:  "Body of " + id,
		URL:   "https://example.com/" + id,
	}
}

func relevant() models.Verdict {
	return models.Verdict{Relevant: true, Rationale: "good fit", SuggestedReply: "try it"}
}

func notRelevant() models.Verdict {
	return models.Verdict{Relevant: false, Rationale: "off topic"}
}

func TestRelevantPostIsNotifiedAndCommitted(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p := post("p1")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, p, relevant()).Return(nil)

	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, store.Contains("p1"))
	summary := svc.LastRun()
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Relevant)
	assert.Equal(t, 1, summary.Notified)
	assert.Equal(t, 0, summary.Failed)
	dispatcher.AssertNumberOfCalls(t, "Notify", 1)
}

func TestSecondRunIsIdempotent(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p := post("p1")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, p, relevant()).Return(nil)

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))

	// Second run over the unchanged feed classifies and notifies nothing.
	cls.AssertNumberOfCalls(t, "Classify", 1)
	dispatcher.AssertNumberOfCalls(t, "Notify", 1)
	assert.True(t, store.Contains("p1"))
	assert.Equal(t, 1, svc.LastRun().Skipped)
}

func TestAlreadyProcessedPostSkipsClassification(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p1, p2 := post("p1"), post("p2")

	// P2 was committed in a prior run.
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Commit(context.Background(), "p2"))

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p1, p2}, nil)
	cls.On("Classify", mock.Anything, p1).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, p1, relevant()).Return(nil)

	require.NoError(t, svc.Run(context.Background()))

	// P2 never reaches the classifier; afterward both are committed.
	cls.AssertNumberOfCalls(t, "Classify", 1)
	assert.True(t, store.Contains("p1"))
	assert.True(t, store.Contains("p2"))
}

func TestNegativeVerdictIsCommittedWithoutNotification(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p := post("p3")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(notRelevant(), nil)

	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, store.Contains("p3"))
	dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestClassificationFailureLeavesPostUncommitted(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p := post("p4")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(models.Verdict{}, errors.New("malformed response")).Once()

	require.NoError(t, svc.Run(context.Background()))
	assert.False(t, store.Contains("p4"))
	assert.Equal(t, 1, svc.LastRun().Failed)
	dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)

	// Next run re-attempts classification for the same post.
	cls.On("Classify", mock.Anything, p).Return(notRelevant(), nil).Once()
	require.NoError(t, svc.Run(context.Background()))
	assert.True(t, store.Contains("p4"))
}

func TestDeliveryFailureLeavesPostUncommitted(t *testing.T) {
	svc, source, cls, dispatcher, store, _ := newTestService(t, testConfig())
	p := post("p5")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, p, relevant()).Return(errors.New("webhook unreachable"))

	require.NoError(t, svc.Run(context.Background()))

	assert.False(t, store.Contains("p5"))
	assert.Equal(t, 1, svc.LastRun().Failed)
}

func TestFeedFetchFailureIsIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.Forums = []string{"broken", "gamedev"}
	svc, source, cls, dispatcher, store, _ := newTestService(t, cfg)
	p := post("p1")

	source.On("Fetch", mock.Anything, "broken").Return(nil, errors.New("connection refused"))
	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, p, relevant()).Return(nil)

	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, store.Contains("p1"))
	summary := svc.LastRun()
	assert.Equal(t, 1, summary.FeedErrors)
	assert.Equal(t, 1, summary.Notified)
}

func TestAllFeedsArePolled(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := dedup.NewStore(backend, "processed.json", 0)

	posts := &MockSource{name: "reddit-posts", scopes: []string{"gamedev"}}
	search := &MockSource{name: "reddit-search", scopes: []string{"no-code engine"}}
	cls := &MockClassifier{}
	dispatcher := &MockDispatcher{}
	dispatcher.On("SendRunSummary", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewService(testConfig(), []sources.FeedSource{posts, search}, store, cls, dispatcher)

	p := post("p1")
	hit := models.Post{ID: "s1", Kind: models.KindSearch, Forum: "godot",
		Title: "Looking for a no-code engine", MatchedKeyword: "no-code engine"}

	posts.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	search.On("Fetch", mock.Anything, "no-code engine").Return([]models.Post{hit}, nil)
	cls.On("Classify", mock.Anything, p).Return(notRelevant(), nil)
	cls.On("Classify", mock.Anything, hit).Return(relevant(), nil)
	dispatcher.On("Notify", mock.Anything, hit, relevant()).Return(nil)

	require.NoError(t, svc.Run(context.Background()))

	// Items from every feed flow through the same dedup and notify path.
	assert.True(t, store.Contains("p1"))
	assert.True(t, store.Contains("s1"))
	summary := svc.LastRun()
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Notified)
	dispatcher.AssertNumberOfCalls(t, "Notify", 1)
}

func TestFailingFeedDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := dedup.NewStore(backend, "processed.json", 0)

	comments := &MockSource{name: "reddit-comments", scopes: []string{"gamedev"}}
	posts := &MockSource{name: "reddit-posts", scopes: []string{"gamedev"}}
	cls := &MockClassifier{}
	dispatcher := &MockDispatcher{}

	svc := NewService(testConfig(), []sources.FeedSource{comments, posts}, store, cls, dispatcher)

	p := post("p1")
	comments.On("Fetch", mock.Anything, "gamedev").Return(nil, errors.New("rate limited"))
	posts.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(notRelevant(), nil)

	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, store.Contains("p1"))
	assert.Equal(t, 1, svc.LastRun().FeedErrors)
}

func TestExcludeKeywordSkipsClassifier(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludeKeywords = []string{"hiring"}
	svc, source, cls, _, store, _ := newTestService(t, cfg)

	p := post("p6")
	p.Title = "[Hiring] Senior engineer wanted"

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)

	require.NoError(t, svc.Run(context.Background()))

	// Excluded posts are terminal negatives: committed without spending a
	// classification call.
	cls.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	assert.True(t, store.Contains("p6"))
	assert.Equal(t, 1, svc.LastRun().Prefiltered)
}

func TestCorruptStoreAbortsRun(t *testing.T) {
	svc, source, _, _, _, path := newTestService(t, testConfig())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	err := svc.Run(context.Background())
	require.Error(t, err)

	var corrupt *dedup.CorruptError
	assert.True(t, errors.As(err, &corrupt))

	// Nothing was fetched: the run aborted before any processing.
	source.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestSummarySentOnlyWhenRelevantFound(t *testing.T) {
	svc, source, cls, dispatcher, _, _ := newTestService(t, testConfig())
	p := post("p7")

	source.On("Fetch", mock.Anything, "gamedev").Return([]models.Post{p}, nil)
	cls.On("Classify", mock.Anything, p).Return(notRelevant(), nil)

	require.NoError(t, svc.Run(context.Background()))

	dispatcher.AssertNotCalled(t, "SendRunSummary", mock.Anything, mock.Anything)
}
