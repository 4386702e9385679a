package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"dashboard-refresher/internal/dashboard/core/domain"
	"dashboard-refresher/internal/dashboard/core/ports"
)

// SlackNotifier posts refresh outcomes to an incoming webhook. With an empty
// URL it does nothing.
type SlackNotifier struct {
	webhookURL string
	dashboard  string
}

var _ ports.NotifierPort = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL, dashboard string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, dashboard: dashboard}
}

func (n *SlackNotifier) Enabled() bool { return n.webhookURL != "" }

func (n *SlackNotifier) Notify(ctx context.Context, r *domain.Report) error {
	if !n.Enabled() || r == nil {
		return nil
	}
	return slack.PostWebhookContext(ctx, n.webhookURL, Message(n.dashboard, r))
}

// Message renders a report as a webhook message.
func Message(dashboard string, r *domain.Report) *slack.WebhookMessage {
	color, status := "good", "refreshed"
	switch {
	case r.Failed():
		color, status = "danger", "refresh failed"
	case r.Degraded():
		color, status = "warning", "refreshed with fallbacks"
	}

	att := slack.Attachment{
		Color: color,
		Fields: []slack.AttachmentField{
			{Title: "Run", Value: r.RunID, Short: true},
			{Title: "Duration", Value: r.Duration, Short: true},
		},
	}
	if r.Failed() {
		att.Text = r.Error
	}
	if r.Degraded() {
		lines := make([]string, 0, len(r.Degradations))
		for _, d := range r.Degradations {
			lines = append(lines, fmt.Sprintf("• %s → %s (%s)", d.Stage, d.Fallback, d.Reason))
		}
		att.Fields = append(att.Fields, slack.AttachmentField{Title: "Fallbacks", Value: strings.Join(lines, "\n")})
	}

	return &slack.WebhookMessage{
		Text:        fmt.Sprintf("%s %s", dashboard, status),
		Attachments: []slack.Attachment{att},
	}
}
