package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// EmailNotifier sends the run summary by email. It is an optional second
// channel for operators who want the numbers outside the chat group.
type EmailNotifier struct {
	to       string
	smtpHost string
	smtpPort int
	username string
	password string
}

var _ SummarySink = (*EmailNotifier)(nil)

// NewEmailNotifier creates a summary email sender.
func NewEmailNotifier(to, smtpHost string, smtpPort int, username, password string) *EmailNotifier {
	return &EmailNotifier{
		to:       to,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
	}
}

// SendRunSummary emails the run counters as a small HTML table with a plain
// text alternative.
func (e *EmailNotifier) SendRunSummary(_ context.Context, summary models.RunSummary) error {
	subject := fmt.Sprintf("Lead monitor run: %d relevant, %d notified", summary.Relevant, summary.Notified)

	htmlBody, err := buildSummaryHTML(summary)
	if err != nil {
		return fmt.Errorf("failed to build summary email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.username)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buildSummaryText(summary))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(e.smtpHost, e.smtpPort, e.username, e.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send summary email: %w", err)
	}

	return nil
}

var summaryTemplate = template.Must(template.New("summary").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #2b5fd9; color: white; padding: 16px; border-radius: 5px; }
        table { border-collapse: collapse; margin-top: 16px; }
        td { padding: 6px 14px; border-bottom: 1px solid #ddd; }
        td.num { text-align: right; font-weight: bold; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Lead monitor run summary</h2>
        <p>Started {{.StartedAt.Format "2006-01-02 15:04:05 UTC"}}, took {{.Duration}}</p>
    </div>
    <table>
        <tr><td>Posts fetched</td><td class="num">{{.Fetched}}</td></tr>
        <tr><td>Already processed</td><td class="num">{{.Skipped}}</td></tr>
        <tr><td>Excluded by keyword</td><td class="num">{{.Prefiltered}}</td></tr>
        <tr><td>Classified</td><td class="num">{{.Classified}}</td></tr>
        <tr><td>Relevant</td><td class="num">{{.Relevant}}</td></tr>
        <tr><td>Notified</td><td class="num">{{.Notified}}</td></tr>
        <tr><td>Failed (retried next run)</td><td class="num">{{.Failed}}</td></tr>
        <tr><td>Feed fetch errors</td><td class="num">{{.FeedErrors}}</td></tr>
    </table>
    <p><small>Generated automatically by the Reddit leads bot.</small></p>
</body>
</html>
`))

func buildSummaryHTML(summary models.RunSummary) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, summary); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildSummaryText(summary models.RunSummary) string {
	return fmt.Sprintf(
		"Lead monitor run summary\nStarted: %s (took %s)\n\nFetched: %d\nAlready processed: %d\nExcluded by keyword: %d\nClassified: %d\nRelevant: %d\nNotified: %d\nFailed: %d\nFeed fetch errors: %d\n",
		summary.StartedAt.Format("2006-01-02 15:04:05 UTC"), summary.Duration,
		summary.Fetched, summary.Skipped, summary.Prefiltered, summary.Classified,
		summary.Relevant, summary.Notified, summary.Failed, summary.FeedErrors,
	)
}
