package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"controlroom/internal/config"
	"controlroom/internal/domain"
	"controlroom/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100

	signatureHeader = "X-Controlroom-Signature"
)

// WebhookDispatcher posts new decision log entries to configured webhooks. Each webhook has a
// persisted cursor, so a restart resumes where delivery stopped.
type WebhookDispatcher struct {
	Repo     repo.Repo
	Webhooks []config.Webhook
	Client   *http.Client
	Interval time.Duration
	Logger   *slog.Logger
}

type webhookBatch struct {
	WebhookID string            `json:"webhook_id"`
	Entries   []domain.LogEntry `json:"entries"`
}

// Run delivers until ctx is done.
func (d WebhookDispatcher) Run(ctx context.Context) {
	if len(d.active()) == 0 {
		return
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d WebhookDispatcher) active() []config.Webhook {
	var out []config.Webhook
	for _, hook := range d.Webhooks {
		if hook.Enabled && strings.TrimSpace(hook.URL) != "" {
			out = append(out, hook)
		}
	}
	return out
}

// DispatchAll runs one delivery round for every enabled webhook.
func (d WebhookDispatcher) DispatchAll(ctx context.Context) {
	for _, hook := range d.active() {
		if err := d.dispatch(ctx, hook); err != nil {
			d.logger().Warn("webhook delivery failed", slog.String("webhook", hook.ID), slog.Any("err", err))
		}
	}
}

func (d WebhookDispatcher) dispatch(ctx context.Context, hook config.Webhook) error {
	cursor, err := d.cursorFor(ctx, hook)
	if err != nil {
		return fmt.Errorf("init cursor: %w", err)
	}
	for {
		entries, err := d.Repo.LogAfter(ctx, cursor, defaultWebhookBatch)
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := d.post(ctx, hook, entries); err != nil {
			return err
		}
		cursor = entries[len(entries)-1].Seq
		if err := d.Repo.SetWebhookCursor(ctx, hook.ID, cursor); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		if len(entries) < defaultWebhookBatch {
			return nil
		}
	}
}

// cursorFor starts a webhook without a stored cursor at the current end of the log.
func (d WebhookDispatcher) cursorFor(ctx context.Context, hook config.Webhook) (int64, error) {
	cur, ok, err := d.Repo.WebhookCursor(ctx, hook.ID)
	if err != nil || ok {
		return cur, err
	}
	cur, err = d.Repo.LatestLogSeq(ctx)
	if err != nil {
		return 0, err
	}
	return cur, d.Repo.SetWebhookCursor(ctx, hook.ID, cur)
}

func (d WebhookDispatcher) post(ctx context.Context, hook config.Webhook, entries []domain.LogEntry) error {
	data, err := json.Marshal(webhookBatch{WebhookID: hook.ID, Entries: entries})
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Controlroom-Webhook", hook.ID)
	req.Header.Set("X-Controlroom-Delivery", fmt.Sprintf("%d-%d", entries[0].Seq, entries[len(entries)-1].Seq))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set(signatureHeader, Sign(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Sign returns the signature header value for body: "sha256=" + hex HMAC-SHA256.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (d WebhookDispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
