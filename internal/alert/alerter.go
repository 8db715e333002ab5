// Package alert delivers operational alerts to a configured webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/model"
)

// Type identifies the kind of alert.
type Type string

const (
	// TypeIngestFailure is raised when an ingestion run fails.
	TypeIngestFailure Type = "ingest_failure"
)

// Alert is a single alert payload.
type Alert struct {
	Type      Type           `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter posts alerts to a webhook URL. A blank URL disables delivery.
type Alerter struct {
	webhookURL string
	client     *http.Client
}

// NewAlerter creates an Alerter for the given webhook URL.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// IngestFailure builds the alert for a failed ingestion run.
func IngestFailure(run *model.IngestRun, errMsg string) Alert {
	return Alert{
		Type:     TypeIngestFailure,
		Severity: "high",
		Message:  fmt.Sprintf("Ingest failed: %s", run.Source),
		Details: map[string]any{
			"source":             run.Source,
			"run_key":            run.RunKey,
			"started_at":         run.StartedAt,
			"records_fetched":    run.RecordsFetched,
			"records_normalized": run.RecordsNormalized,
			"error":              errMsg,
		},
		Timestamp: time.Now().UTC(),
	}
}

// Send delivers alerts to the webhook, returning the number delivered.
// Delivery failures are logged, never propagated: an alerting outage must not
// mask the condition being alerted on.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) int {
	if a == nil || a.webhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, al := range alerts {
		if err := a.sendWebhook(ctx, al); err != nil {
			zap.L().Error("alert: failed to send",
				zap.String("type", string(al.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("alert: sent",
			zap.String("type", string(al.Type)),
			zap.String("severity", al.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, al Alert) error {
	payload, err := json.Marshal(al)
	if err != nil {
		return eris.Wrap(err, "alert: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
