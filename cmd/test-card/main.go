// Manual webhook check: sends a sample lead card to the configured Feishu
// webhook, or prints nothing-sent guidance when FEISHU_WEBHOOK_URL is unset.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wefunai/reddit-leads-bot/internal/models"
	"github.com/wefunai/reddit-leads-bot/internal/notifications"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	webhookURL := os.Getenv("FEISHU_WEBHOOK_URL")
	if webhookURL == "" {
		log.Fatal("FEISHU_WEBHOOK_URL must be set to send a test card")
	}

	post := models.Post{
		ID:        "test-card-1",
		Forum:     "gamedev",
		Title:     "I want to make a simple puzzle game but coding is so frustrating",
		Body:      "I have this idea for a match-3 puzzle game but every time I try to code the logic I get stuck. Is there an easier way to prototype game mechanics without writing tons of code?",
		Author:    "testuser",
		URL:       "https://reddit.com/r/gamedev/test-card-1",
		CreatedAt: time.Now(),
	}
	verdict := models.Verdict{
		Relevant:       true,
		Rationale:      "Poster is frustrated with coding and looking for an easier way to prototype games",
		SuggestedReply: "I totally feel you on the coding frustration! Prototyping through prompts has been working well for me lately, might be worth a look for quick iterations.",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dispatcher := notifications.NewFeishuDispatcher(webhookURL)
	if err := dispatcher.Notify(ctx, post, verdict); err != nil {
		log.Fatalf("Card delivery failed: %v", err)
	}

	fmt.Println("✅ Test card delivered")
}
