package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// previewRunes caps the post body excerpt shown on the card.
const previewRunes = 300

// FeishuDispatcher posts interactive cards to a Feishu group webhook.
type FeishuDispatcher struct {
	webhookURL string
	client     *resty.Client
}

var _ Dispatcher = (*FeishuDispatcher)(nil)
var _ SummarySink = (*FeishuDispatcher)(nil)

// feishuMessage is the webhook payload envelope.
type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

type feishuCard struct {
	Config   *feishuCardConfig `json:"config,omitempty"`
	Header   feishuCardHeader  `json:"header"`
	Elements []feishuElement   `json:"elements"`
}

type feishuCardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type feishuCardHeader struct {
	Title    feishuText `json:"title"`
	Template string     `json:"template"`
}

type feishuText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// feishuElement covers the element shapes the cards use: div, hr, field rows
// and action buttons.
type feishuElement struct {
	Tag     string         `json:"tag"`
	Text    *feishuText    `json:"text,omitempty"`
	Fields  []feishuField  `json:"fields,omitempty"`
	Actions []feishuAction `json:"actions,omitempty"`
}

type feishuField struct {
	IsShort bool       `json:"is_short"`
	Text    feishuText `json:"text"`
}

type feishuAction struct {
	Tag  string     `json:"tag"`
	Text feishuText `json:"text"`
	Type string     `json:"type"`
	URL  string     `json:"url"`
}

// feishuResponse covers both response shapes the webhook uses: older
// deployments answer with "StatusCode", newer ones with "code". Pointers
// distinguish an absent field from a literal 0.
type feishuResponse struct {
	Code       *int   `json:"code"`
	StatusCode *int   `json:"StatusCode"`
	Msg        string `json:"msg"`
}

func (r feishuResponse) ok() bool {
	return (r.Code != nil && *r.Code == 0) || (r.StatusCode != nil && *r.StatusCode == 0)
}

// NewFeishuDispatcher creates a dispatcher for the given webhook URL.
func NewFeishuDispatcher(webhookURL string) *FeishuDispatcher {
	return &FeishuDispatcher{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(10 * time.Second),
	}
}

// Notify renders the lead card for a relevant post and delivers it.
func (d *FeishuDispatcher) Notify(ctx context.Context, post models.Post, verdict models.Verdict) error {
	return d.send(ctx, d.buildLeadCard(post, verdict))
}

// SendRunSummary posts the green end-of-run summary card.
func (d *FeishuDispatcher) SendRunSummary(ctx context.Context, summary models.RunSummary) error {
	return d.send(ctx, d.buildSummaryCard(summary))
}

func (d *FeishuDispatcher) send(ctx context.Context, message *feishuMessage) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(d.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Feishu message: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("feishu webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	// The webhook answers 200 even for rejected payloads; the body carries
	// the real result.
	var result feishuResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return fmt.Errorf("failed to parse Feishu response: %w", err)
	}
	if !result.ok() {
		return fmt.Errorf("feishu webhook rejected message: %s", string(resp.Body()))
	}

	return nil
}

func (d *FeishuDispatcher) buildLeadCard(post models.Post, verdict models.Verdict) *feishuMessage {
	preview := post.Body
	if runes := []rune(preview); len(runes) > previewRunes {
		preview = string(runes[:previewRunes]) + "..."
	}

	elements := []feishuElement{
		mdDiv(fmt.Sprintf("**📌 Title**\n%s", post.Title)),
		mdDiv(fmt.Sprintf("**📝 Preview**\n%s", preview)),
		{Tag: "hr"},
		mdDiv(fmt.Sprintf("**🤖 Why it matched**\n%s", verdict.Rationale)),
		mdDiv(fmt.Sprintf("**💬 Suggested reply**\n```\n%s\n```", verdict.SuggestedReply)),
		{Tag: "hr"},
		{
			Tag: "div",
			Fields: []feishuField{
				{IsShort: true, Text: feishuText{Tag: "lark_md", Content: fmt.Sprintf("**Author**: u/%s", post.Author)}},
				{IsShort: true, Text: feishuText{Tag: "lark_md", Content: fmt.Sprintf("**Forum**: r/%s", post.Forum)}},
			},
		},
		{
			Tag: "action",
			Actions: []feishuAction{
				{
					Tag:  "button",
					Text: feishuText{Tag: "plain_text", Content: "🔗 Open post"},
					Type: "primary",
					URL:  post.URL,
				},
			},
		},
	}

	return &feishuMessage{
		MsgType: "interactive",
		Card: feishuCard{
			Config: &feishuCardConfig{WideScreenMode: true},
			Header: feishuCardHeader{
				Title:    feishuText{Tag: "plain_text", Content: fmt.Sprintf("🎯 Potential lead - r/%s", post.Forum)},
				Template: "blue",
			},
			Elements: elements,
		},
	}
}

func (d *FeishuDispatcher) buildSummaryCard(summary models.RunSummary) *feishuMessage {
	content := fmt.Sprintf(
		"• Fetched: **%d**\n• Already seen: **%d**\n• Classified: **%d**\n• Relevant: **%d**\n• Notified: **%d**\n• Failed (retried next run): **%d**",
		summary.Fetched, summary.Skipped, summary.Classified,
		summary.Relevant, summary.Notified, summary.Failed,
	)

	return &feishuMessage{
		MsgType: "interactive",
		Card: feishuCard{
			Header: feishuCardHeader{
				Title:    feishuText{Tag: "plain_text", Content: "📊 Lead monitor run summary"},
				Template: "green",
			},
			Elements: []feishuElement{mdDiv(content)},
		},
	}
}

func mdDiv(content string) feishuElement {
	return feishuElement{
		Tag:  "div",
		Text: &feishuText{Tag: "lark_md", Content: content},
	}
}
