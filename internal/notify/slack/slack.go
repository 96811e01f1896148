// Package slack sends escalation cues to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

const httpTimeout = 10 * time.Second

// Notifier sends assessment escalations to a Slack webhook. It implements
// assess.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts an escalation to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, sessionID string, e assess.Escalation) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(sessionID, e)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(sessionID string, e assess.Escalation) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(e),
			{"type": "divider"},
			detailBlock(e),
			contextBlock(sessionID),
		},
	}
}

func headerBlock(e assess.Escalation) map[string]any {
	text := fmt.Sprintf("%s %s", levelEmoji(e.Level), kindTitle(e.Kind))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func detailBlock(e assess.Escalation) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*\n%s", e.Level, e.Message),
		},
	}
}

func contextBlock(sessionID string) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("fieldtriage • session %s • %s", sessionID, time.Now().UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func kindTitle(kind string) string {
	switch kind {
	case "red_flag":
		return "Red Flag Raised"
	case "no_transport":
		return "Transport Not Authorized"
	case "high_risk":
		return "High-Risk Finding"
	case "recheck_due":
		return "Observation Recheck Due"
	default:
		return "Escalation"
	}
}

func levelEmoji(level assess.Level) string {
	switch level {
	case assess.LevelHighRisk:
		return "\U0001f534" // red circle
	case assess.LevelCaution:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
