package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration: cron expression with seconds field
	PollSchedule string

	// Monitored forums (subreddit names) in notification-priority order
	Forums        []string
	PostsPerForum int

	// Comment feed monitoring for the same forums
	MonitorComments  bool
	CommentsPerForum int

	// Sitewide keyword search, catching leads outside the monitored forums
	EnableKeywordSearch     bool
	SearchKeywords          []string
	SearchResultsPerKeyword int

	// Product context used to build the classification prompt
	ProductName        string
	ProductDescription string
	ProductAudience    string

	// Keywords that rule a post out before classification
	ExcludeKeywords []string

	// Classifier credentials (OpenAI-compatible endpoint)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Feishu group webhook
	FeishuWebhookURL string

	// Dedup store configuration
	DataFile          string
	MaxProcessedPosts int

	// Azure Blob backend (optional; local file when unset)
	StorageAccount   string
	StorageContainer string

	// Optional run-summary email
	SummaryEmail string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// FileOverlay is the optional YAML file that overrides the list-valued and
// long-text settings that are awkward to keep in environment variables.
type FileOverlay struct {
	Forums             []string `yaml:"forums"`
	SearchKeywords     []string `yaml:"search_keywords"`
	ExcludeKeywords    []string `yaml:"exclude_keywords"`
	ProductName        string   `yaml:"product_name"`
	ProductDescription string   `yaml:"product_description"`
	ProductAudience    string   `yaml:"product_audience"`
}

// Load loads configuration from environment variables, then applies the YAML
// overlay file named by CONFIG_FILE if one is set.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Debug:        getBoolEnv("DEBUG", false),
		PollSchedule: getEnv("POLL_SCHEDULE", "0 */30 * * * *"),

		Forums:        getSliceEnv("FORUMS", []string{"gamedev", "IndieDev", "SoloDevelopment"}),
		PostsPerForum: getIntEnv("POSTS_PER_FORUM", 10),

		MonitorComments:  getBoolEnv("MONITOR_COMMENTS", false),
		CommentsPerForum: getIntEnv("COMMENTS_PER_FORUM", 25),

		EnableKeywordSearch:     getBoolEnv("ENABLE_KEYWORD_SEARCH", false),
		SearchKeywords:          getSliceEnv("SEARCH_KEYWORDS", nil),
		SearchResultsPerKeyword: getIntEnv("SEARCH_RESULTS_PER_KEYWORD", 10),

		ProductName:        getEnv("PRODUCT_NAME", ""),
		ProductDescription: getEnv("PRODUCT_DESCRIPTION", ""),
		ProductAudience:    getEnv("PRODUCT_AUDIENCE", ""),

		ExcludeKeywords: getSliceEnv("EXCLUDE_KEYWORDS", nil),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		FeishuWebhookURL: getEnv("FEISHU_WEBHOOK_URL", ""),

		DataFile:          getEnv("DATA_FILE", "data/processed_posts.json"),
		MaxProcessedPosts: getIntEnv("MAX_PROCESSED_POSTS", 5000),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "leads"),

		SummaryEmail: getEnv("SUMMARY_EMAIL", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overlay FileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if len(overlay.Forums) > 0 {
		c.Forums = overlay.Forums
	}
	if len(overlay.SearchKeywords) > 0 {
		c.SearchKeywords = overlay.SearchKeywords
	}
	if len(overlay.ExcludeKeywords) > 0 {
		c.ExcludeKeywords = overlay.ExcludeKeywords
	}
	if overlay.ProductName != "" {
		c.ProductName = overlay.ProductName
	}
	if overlay.ProductDescription != "" {
		c.ProductDescription = overlay.ProductDescription
	}
	if overlay.ProductAudience != "" {
		c.ProductAudience = overlay.ProductAudience
	}

	return nil
}

func (c *Config) validate() error {
	if len(c.Forums) == 0 {
		return fmt.Errorf("at least one forum must be configured (FORUMS)")
	}

	if c.EnableKeywordSearch && len(c.SearchKeywords) == 0 {
		return fmt.Errorf("SEARCH_KEYWORDS is required when ENABLE_KEYWORD_SEARCH is set")
	}

	if c.ProductName == "" || c.ProductDescription == "" {
		return fmt.Errorf("PRODUCT_NAME and PRODUCT_DESCRIPTION are required to build the classification prompt")
	}

	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if c.FeishuWebhookURL == "" {
		return fmt.Errorf("FEISHU_WEBHOOK_URL is required")
	}

	if c.SummaryEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when SUMMARY_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
