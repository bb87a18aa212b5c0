// Package notify publishes finished run reports to an external status
// receiver over HTTP. Delivery is best-effort: a failed publish is logged
// and counted, never folded into the run verdict.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/installgrid/internal/report"
)

const defaultTimeout = 30 * time.Second

// WebhookPublisher posts RunReports with an HMAC signature so receivers can
// authenticate the sender.
// Headers: X-InstallGrid-Run-ID, X-InstallGrid-Signature.
type WebhookPublisher struct {
	client  *http.Client
	url     string
	secret  string
	timeout time.Duration
}

// NewWebhookPublisher creates a publisher for the given receiver URL.
func NewWebhookPublisher(url, secret string) *WebhookPublisher {
	return &WebhookPublisher{
		client:  &http.Client{},
		url:     url,
		secret:  secret,
		timeout: defaultTimeout,
	}
}

// Publish posts the report. Any non-2xx response is an error.
func (p *WebhookPublisher) Publish(ctx context.Context, rep *report.RunReport) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-InstallGrid-Run-ID", rep.RunID)
	req.Header.Set("X-InstallGrid-Signature", computeSignature(p.secret, body))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver rejected report: status %d", resp.StatusCode)
	}
	return nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to authenticate incoming reports.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
