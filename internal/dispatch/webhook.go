package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// Webhook posts each dispatchable signal as a JSON body to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhook constructs a Webhook dispatcher with a bounded request timeout.
func NewWebhook(url string, timeout time.Duration, log zerolog.Logger) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}, log: log}
}

type webhookPayload struct {
	SignalKey string          `json:"signalKey"`
	Type      string          `json:"type"`
	Severity  string          `json:"severity"`
	Label     string          `json:"label"`
	Summary   signals.Summary `json:"summary"`
}

// Dispatch posts one request per signal; a failed POST is recorded in
// Result.Failed and does not stop the remaining signals from being sent.
func (w *Webhook) Dispatch(ctx context.Context, sigs []signals.Signal) Result {
	res := NewResult()
	for _, s := range sigs {
		if err := w.post(ctx, s); err != nil {
			w.log.Warn().Err(err).Str("signalKey", string(s.SignalKey)).Msg("webhook dispatch failed")
			res.Failed[s.SignalKey] = err
			continue
		}
		res.Sent = append(res.Sent, s.SignalKey)
	}
	return res
}

func (w *Webhook) post(ctx context.Context, s signals.Signal) error {
	body, err := json.Marshal(webhookPayload{
		SignalKey: string(s.SignalKey),
		Type:      string(s.Type),
		Severity:  string(s.Severity),
		Label:     string(s.Label),
		Summary:   s.Summary,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
