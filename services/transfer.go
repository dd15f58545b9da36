package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/utils"
)

// TransferRequester hands save/withdraw requests to the external transfer
// executor. The core never signs or submits transfers itself; it only emits
// the request and waits for the confirmation callback.
type TransferRequester interface {
	Request(ctx context.Context, req models.TransferRequest)
}

// WebhookRequester POSTs transfer requests to the executor's webhook.
type WebhookRequester struct {
	url    string
	client *http.Client
}

func NewWebhookRequester(url string) *WebhookRequester {
	return &WebhookRequester{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookRequester) Request(ctx context.Context, req models.TransferRequest) {
	body, err := json.Marshal(req)
	if err != nil {
		utils.SafeError("Failed to encode transfer request %s: %v", req.ExternalRef, err)
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		utils.SafeError("Failed to build transfer request %s: %v", req.ExternalRef, err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		// Delivery failures are the executor's problem to retry against the
		// still-pending ledger entry; the core keeps no retry policy.
		utils.SafeError("Failed to deliver transfer request %s: %v", req.ExternalRef, err)
		return
	}
	defer resp.Body.Close()

	utils.SafeInfo("Transfer request %s delivered (%d)", req.ExternalRef, resp.StatusCode)
}

// LogRequester is the fallback when no executor webhook is configured.
type LogRequester struct{}

func (LogRequester) Request(_ context.Context, req models.TransferRequest) {
	utils.SafeInfo("Transfer request %s (%s) emitted for position %s", req.ExternalRef, req.Kind, req.PositionID)
}

// NewRequesterFromEnv picks the webhook requester when EXECUTOR_WEBHOOK_URL
// is set, the logging fallback otherwise.
func NewRequesterFromEnv() TransferRequester {
	if url := os.Getenv("EXECUTOR_WEBHOOK_URL"); url != "" {
		return NewWebhookRequester(url)
	}
	return LogRequester{}
}
