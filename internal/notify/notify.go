// Package notify provides notification functionality for the strangle trader.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"delta-strangler/internal/config"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// Notifier reports the lifecycle of a strangle to the operator.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendTrade(ctx context.Context, trade *models.TradeRecord, warnings []string) error
	SendEntry(ctx context.Context, snap *models.EntrySnapshot) error
	SendSkip(ctx context.Context, reason string) error
	SendError(ctx context.Context, err error, where string) error
}

// NotificationChannel is one delivery target.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification is a single message with structured detail for machine
// consumers.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

type NotificationType string

const (
	NotificationEntry  NotificationType = "entry"
	NotificationTrade  NotificationType = "trade"
	NotificationReview NotificationType = "manual_review"
	NotificationSkip   NotificationType = "skip"
	NotificationError  NotificationType = "error"
)

// MultiNotifier fans a notification out to every enabled channel.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []NotificationChannel
}

// NewMultiNotifier creates a MultiNotifier, adding the webhook channel when
// notifications and the webhook are both enabled.
func NewMultiNotifier(cfg config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{}
	if cfg.Enabled && cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	return mn
}

func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Send delivers n to every enabled channel. One failing channel does not
// stop the others; their errors are joined.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := append([]NotificationChannel(nil), mn.channels...)
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SendEntry announces a new strangle.
func (mn *MultiNotifier) SendEntry(ctx context.Context, snap *models.EntrySnapshot) error {
	title := fmt.Sprintf("Strangle opened [%s] %s", snap.Mode.Label(), snap.Date)
	message := fmt.Sprintf(
		"SELL CE %s (+%d) bid %s\nSELL PE %s (-%d) bid %s\nCombined: %s\nSpot: %s",
		snap.CallSymbol, snap.CEDistance, utils.FormatUSD(snap.EntryCallPremium),
		snap.PutSymbol, snap.PEDistance, utils.FormatUSD(snap.EntryPutPremium),
		utils.FormatUSD(snap.EntryCombinedPremium),
		utils.FormatUSD(snap.SpotPrice),
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationEntry,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"date":           snap.Date,
			"call_symbol":    snap.CallSymbol,
			"put_symbol":     snap.PutSymbol,
			"entry_combined": snap.EntryCombinedPremium,
			"mode":           snap.Mode,
		},
	})
}

// SendTrade sends a completed-trade notification. Warnings upgrade it to a
// manual-review notification.
func (mn *MultiNotifier) SendTrade(ctx context.Context, trade *models.TradeRecord, warnings []string) error {
	pnlSign := "+"
	if trade.PnLUSD < 0 {
		pnlSign = ""
	}

	typ := NotificationTrade
	title := fmt.Sprintf("Strangle closed: %s", trade.ExitReason)
	if trade.ManualReview {
		typ = NotificationReview
		title = fmt.Sprintf("VERIFY MANUALLY: %s", trade.ExitReason)
	}

	message := fmt.Sprintf(
		"Date: %s (%s)\nEntry: %s\nExit: %s\nP&L: %s%.4f (%s)\nSource: %s\nDuration: %s",
		trade.Date, trade.Mode.Label(),
		utils.FormatUSD(trade.EntryCombined),
		utils.FormatUSD(trade.ExitCombined),
		pnlSign, trade.PnLUSD,
		utils.FormatINRCompact(trade.PnLINR),
		trade.DataSource,
		trade.Duration,
	)
	if len(warnings) > 0 {
		message += "\n\n" + strings.Join(warnings, "\n")
	}

	return mn.Send(ctx, Notification{
		Type:    typ,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"date":          trade.Date,
			"trigger":       trade.Trigger,
			"breach":        trade.Breach,
			"data_source":   trade.DataSource,
			"exit_combined": trade.ExitCombined,
			"pnl_usd":       trade.PnLUSD,
			"pnl_inr":       trade.PnLINR,
			"manual_review": trade.ManualReview,
			"warnings":      warnings,
		},
	})
}

// SendSkip reports a no-trade day.
func (mn *MultiNotifier) SendSkip(ctx context.Context, reason string) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationSkip,
		Title:   "No trade today",
		Message: reason,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// SendError reports a failed run. Credentials echoed in the error are masked.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, where string) error {
	detail := logging.Redact(err.Error())
	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   fmt.Sprintf("Strangler %s failed", where),
		Message: detail,
		Data: map[string]interface{}{
			"context": where,
			"error":   detail,
		},
	})
}

const webhookTimeout = 10 * time.Second

// WebhookNotifier POSTs each notification as JSON.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

type webhookPayload struct {
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// NewWebhookNotifier creates a webhook channel. It is disabled without a URL.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client:  &http.Client{Timeout: webhookTimeout},
	}
}

func (w *WebhookNotifier) Name() string    { return "webhook" }
func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

// Send posts n and treats any non-2xx status as a failure.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Timestamp: n.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "delta-strangler")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
