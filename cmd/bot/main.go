package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/classifier"
	"github.com/wefunai/reddit-leads-bot/internal/config"
	"github.com/wefunai/reddit-leads-bot/internal/dedup"
	"github.com/wefunai/reddit-leads-bot/internal/notifications"
	"github.com/wefunai/reddit-leads-bot/internal/pipeline"
	"github.com/wefunai/reddit-leads-bot/internal/scheduler"
	"github.com/wefunai/reddit-leads-bot/internal/sources"
	"github.com/wefunai/reddit-leads-bot/internal/storage"
)

const dedupObjectName = "processed_posts.json"

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Reddit leads bot")

	backend, objectName, err := newBackend(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	store := dedup.NewStore(backend, objectName, cfg.MaxProcessedPosts)

	// All Reddit feeds share one client so request pacing covers them all.
	reddit := sources.NewRedditClient()
	feeds := []sources.FeedSource{
		sources.NewRedditSource(reddit, cfg.Forums, cfg.PostsPerForum),
	}
	if cfg.MonitorComments {
		feeds = append(feeds, sources.NewRedditCommentSource(reddit, cfg.Forums, cfg.CommentsPerForum))
	}
	if cfg.EnableKeywordSearch {
		feeds = append(feeds, sources.NewRedditSearchSource(reddit, cfg.SearchKeywords, cfg.SearchResultsPerKeyword))
	}

	cls := classifier.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel,
		classifier.ProductContext{
			Name:        cfg.ProductName,
			Description: cfg.ProductDescription,
			Audience:    cfg.ProductAudience,
		})

	dispatcher := notifications.NewFeishuDispatcher(cfg.FeishuWebhookURL)

	summarySinks := []notifications.SummarySink{dispatcher}
	if cfg.SummaryEmail != "" {
		summarySinks = append(summarySinks,
			notifications.NewEmailNotifier(cfg.SummaryEmail, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword))
	}

	pipelineService := pipeline.NewService(cfg, feeds, store, cls, dispatcher, summarySinks...)

	schedulerService := scheduler.NewService(cfg, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// HTTP server for health checks, metrics, and manual triggering
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(pipelineService)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(pipelineService)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newBackend picks Azure Blob when a storage account is configured, local
// files otherwise, and returns the object name the dedup store lives under.
func newBackend(cfg *config.Config) (storage.Backend, string, error) {
	if cfg.StorageAccount != "" {
		logrus.Infof("Using Azure Blob storage account %s", cfg.StorageAccount)
		backend, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		return backend, dedupObjectName, err
	}

	dir, name := filepath.Dir(cfg.DataFile), filepath.Base(cfg.DataFile)
	logrus.Infof("Using local storage file %s", cfg.DataFile)
	backend, err := storage.NewLocalStorage(dir)
	return backend, name, err
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(p *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(p.GetMetrics()))
	}
}

func triggerHandler(p *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := p.Run(context.Background()); err != nil {
				logrus.Errorf("Manual pipeline trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Pipeline run triggered"}`))
	}
}
