package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// ErrMalformedVerdict means the model replied but the reply could not be
// turned into a verdict (bad JSON, or required fields missing). A missing
// is_relevant must never be read as "not relevant".
var ErrMalformedVerdict = errors.New("classifier: malformed verdict response")

// maxBodyRunes caps how much post body goes into the prompt.
const maxBodyRunes = 2000

// ProductContext is the static product description baked into every prompt.
type ProductContext struct {
	Name        string
	Description string
	Audience    string
}

// OpenAIClassifier calls an OpenAI-compatible chat completion endpoint.
// Setting BaseURL in the config points it at Moonshot, Gemini's compat layer,
// or any other provider speaking the same protocol.
type OpenAIClassifier struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier for the given product context.
func NewOpenAIClassifier(apiKey, baseURL, model string, product ProductContext) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClassifier{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: buildSystemPrompt(product),
	}
}

func buildSystemPrompt(p ProductContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: You are an experienced member of the communities being monitored.\n\n")
	fmt.Fprintf(&b, "Task: Decide whether the forum post below is a potential lead for %s.\n\n", p.Name)
	fmt.Fprintf(&b, "About %s: %s\n\n", p.Name, p.Description)
	if p.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n\n", p.Audience)
	}
	b.WriteString(`ACCEPT posts from people who would plausibly benefit from the product:
describing a problem it solves, asking for tool recommendations in its space,
or expressing frustration it addresses.

REJECT spam, self-promotion, job postings, finished-work showcases, politics,
and anything with no clear need the product answers.

If ACCEPTED, draft a short, casual, empathetic reply (under 50 words) that
validates the poster first and mentions the product naturally, like a fellow
community member rather than a marketer.

CRITICAL OUTPUT RULES:
1. Output STRICT VALID JSON only.
2. No markdown code fences, no intro or outro text.
3. Use exactly this structure:
{"is_relevant": true/false, "reason": "brief reason", "reply_draft": "reply if accepted, empty string otherwise"}`)
	return b.String()
}

// Classify sends one chat completion request for the post and parses the
// structured verdict out of the reply.
func (c *OpenAIClassifier) Classify(ctx context.Context, post models.Post) (models.Verdict, error) {
	body := post.Body
	if runes := []rune(body); len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes])
	}

	kind := post.Kind
	if kind == "" {
		kind = models.KindPost
	}
	userMsg := fmt.Sprintf("Type: %s\nForum: r/%s\nTitle: %s\nContent: %s", kind, post.Forum, post.Title, body)
	if post.MatchedKeyword != "" {
		userMsg += fmt.Sprintf("\nSearch keyword: %s", post.MatchedKeyword)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return models.Verdict{}, fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Verdict{}, fmt.Errorf("%w: no response choices", ErrMalformedVerdict)
	}

	verdict, err := ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		logrus.Debugf("Unparseable classifier reply for %s: %.100s", post.ID, resp.Choices[0].Message.Content)
		return models.Verdict{}, err
	}
	return verdict, nil
}

var embeddedJSON = regexp.MustCompile(`\{[^{}]*"is_relevant"[^{}]*\}`)

// ParseVerdict extracts a verdict from a model reply. It tolerates code
// fences and surrounding prose, but requires is_relevant and reason to be
// present once a JSON object is found.
func ParseVerdict(text string) (models.Verdict, error) {
	candidate := stripFences(text)

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		// The model sometimes wraps the object in prose; try to pull it out.
		candidate = embeddedJSON.FindString(candidate)
		if candidate == "" {
			return models.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
		}
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			return models.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
		}
	}

	if _, ok := raw["is_relevant"]; !ok {
		return models.Verdict{}, fmt.Errorf("%w: missing is_relevant", ErrMalformedVerdict)
	}
	if _, ok := raw["reason"]; !ok {
		return models.Verdict{}, fmt.Errorf("%w: missing reason", ErrMalformedVerdict)
	}

	var verdict models.Verdict
	if err := json.Unmarshal([]byte(candidate), &verdict); err != nil {
		return models.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if !verdict.Relevant {
		verdict.SuggestedReply = ""
	}
	return verdict, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
