// Manual connectivity check: fetches one forum feed and prints the parsed
// posts. Usage: go run ./cmd/test-feed gamedev [comments]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wefunai/reddit-leads-bot/internal/models"
	"github.com/wefunai/reddit-leads-bot/internal/sources"
)

func main() {
	forum := "gamedev"
	if len(os.Args) > 1 {
		forum = os.Args[1]
	}

	client := sources.NewRedditClient()
	var source sources.FeedSource = sources.NewRedditSource(client, []string{forum}, 10)
	if len(os.Args) > 2 && os.Args[2] == "comments" {
		source = sources.NewRedditCommentSource(client, []string{forum}, 10)
	}

	fmt.Printf("📡 Fetching r/%s (%s) ...\n", forum, source.Name())
	fmt.Println(strings.Repeat("-", 50))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	posts, err := source.Fetch(ctx, forum)
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	for _, post := range posts {
		printPost(post)
	}

	fmt.Printf("\n✅ Got %d items\n", len(posts))
}

func printPost(post models.Post) {
	fmt.Printf("\n[%s] %s\n", post.CreatedAt.Format("2006-01-02 15:04"), post.Title)
	fmt.Printf("  id: %s\n  by: u/%s\n  url: %s\n", post.ID, post.Author, post.URL)
	body := post.Body
	if len(body) > 160 {
		body = body[:160] + "..."
	}
	fmt.Printf("  %s\n", strings.ReplaceAll(body, "\n", " "))
}
