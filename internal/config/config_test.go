package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRODUCT_NAME", "wefun.ai")
	t.Setenv("PRODUCT_DESCRIPTION", "prompt-driven game prototyping")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FEISHU_WEBHOOK_URL", "https://open.feishu.cn/open-apis/bot/v2/hook/x")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"gamedev", "IndieDev", "SoloDevelopment"}, cfg.Forums)
	assert.Equal(t, 10, cfg.PostsPerForum)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "data/processed_posts.json", cfg.DataFile)
	assert.Equal(t, 5000, cfg.MaxProcessedPosts)

	// Comment monitoring and keyword search are opt-in.
	assert.False(t, cfg.MonitorComments)
	assert.Equal(t, 25, cfg.CommentsPerForum)
	assert.False(t, cfg.EnableKeywordSearch)
	assert.Equal(t, 10, cfg.SearchResultsPerKeyword)
}

func TestLoadKeywordSearchSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENABLE_KEYWORD_SEARCH", "true")
	t.Setenv("SEARCH_KEYWORDS", "game prototyping, no-code engine")
	t.Setenv("MONITOR_COMMENTS", "true")
	t.Setenv("COMMENTS_PER_FORUM", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.EnableKeywordSearch)
	assert.Equal(t, []string{"game prototyping", "no-code engine"}, cfg.SearchKeywords)
	assert.True(t, cfg.MonitorComments)
	assert.Equal(t, 50, cfg.CommentsPerForum)
}

func TestLoadRequiresKeywordsWhenSearchEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENABLE_KEYWORD_SEARCH", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEARCH_KEYWORDS")
}

func TestLoadParsesSliceEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FORUMS", "godot, unity ,unrealengine")
	t.Setenv("EXCLUDE_KEYWORDS", "hiring,for sale")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"godot", "unity", "unrealengine"}, cfg.Forums)
	assert.Equal(t, []string{"hiring", "for sale"}, cfg.ExcludeKeywords)
}

func TestLoadRequiresProductContext(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PRODUCT_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRODUCT_NAME")
}

func TestLoadRequiresClassifierKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresWebhook(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FEISHU_WEBHOOK_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresSMTPWithSummaryEmail(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUMMARY_EMAIL", "ops@example.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP")
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	setRequiredEnv(t)

	overlay := `
forums:
  - godot
  - IndieDev
search_keywords:
  - no-code engine
exclude_keywords:
  - hiring
product_description: |
  A game and interactive-content generation tool driven by prompts.
`
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"godot", "IndieDev"}, cfg.Forums)
	assert.Equal(t, []string{"no-code engine"}, cfg.SearchKeywords)
	assert.Equal(t, []string{"hiring"}, cfg.ExcludeKeywords)
	assert.Contains(t, cfg.ProductDescription, "driven by prompts")
	// Settings absent from the overlay keep their env values.
	assert.Equal(t, "wefun.ai", cfg.ProductName)
}

func TestLoadBadOverlayFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
