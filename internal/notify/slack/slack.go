// Package slack delivers deadline alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/plazos/internal/deadline"
)

const httpTimeout = 10 * time.Second

// Notifier posts one Slack message per newly created alert. It implements
// deadline.Notifier: delivery failures are logged and reported as false, never
// surfaced as an error, so a Slack outage cannot block alert creation.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a Slack notifier. logger may be nil.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts the alert to the configured webhook and reports whether
// delivery succeeded.
func (n *Notifier) Notify(ctx context.Context, a *deadline.Alert) bool {
	if err := n.send(ctx, a); err != nil {
		n.logger.Warn(ctx, "slack delivery failed", "alert_id", a.ID, "kind", a.Kind, "error", err)
		return false
	}
	return true
}

func (n *Notifier) send(ctx context.Context, a *deadline.Alert) error {
	body, err := json.Marshal(buildMessage(a))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
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

func buildMessage(a *deadline.Alert) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(a),
			{"type": "divider"},
			fieldsBlock(a),
			messageBlock(a),
			{"type": "divider"},
			contextBlock(a),
		},
	}
}

func headerBlock(a *deadline.Alert) map[string]any {
	text := fmt.Sprintf("%s Deadline alert: %s", severityEmoji(a.Severity), kindTitle(a.Kind))
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(a *deadline.Alert) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", a.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Kind:* %s", a.Kind),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reference:* %s %s", a.RefType, a.RefID),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Deadline:* %s", a.Deadline.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func messageBlock(a *deadline.Alert) map[string]any {
	text := a.Message
	if text == "" {
		text = "_No message._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(a *deadline.Alert) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("plazos • alert %s • %s", a.ID, a.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}
	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func kindTitle(k deadline.Kind) string {
	switch k {
	case deadline.Kind60DayReport:
		return "aviso al asegurador (60 días)"
	case deadline.Kind15DaySettlement:
		return "liquidación (15 días hábiles)"
	case deadline.Kind72HourPayment:
		return "pago (72 horas)"
	case deadline.KindPolicyExpiry:
		return "vencimiento de póliza"
	}
	return string(k)
}

func severityEmoji(s deadline.Severity) string {
	switch s {
	case deadline.SeverityCritical:
		return "\U0001f534" // red circle
	case deadline.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
