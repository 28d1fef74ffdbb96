package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"delta-strangler/internal/config"
	"delta-strangler/internal/models"
)

type recordingChannel struct {
	sent []Notification
	err  error
}

func (r *recordingChannel) Name() string    { return "recording" }
func (r *recordingChannel) IsEnabled() bool { return true }
func (r *recordingChannel) Send(ctx context.Context, n Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestMultiNotifier_SendTradeManualReview(t *testing.T) {
	rec := &recordingChannel{}
	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(rec)

	trade := &models.TradeRecord{
		Date: "2026-10-19", Mode: models.ModeDryRun, ExitReason: "Time Exit",
		PnLUSD: -12.5, PnLINR: -1050, DataSource: models.SourceSpotIntrinsicFallback,
		ManualReview: true,
	}
	if err := mn.SendTrade(context.Background(), trade, []string{"estimate from settlement spot"}); err != nil {
		t.Fatalf("SendTrade() error = %v", err)
	}

	if len(rec.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(rec.sent))
	}
	n := rec.sent[0]
	if n.Type != NotificationReview {
		t.Errorf("type = %s, want %s", n.Type, NotificationReview)
	}
	if !strings.Contains(n.Message, "estimate from settlement spot") {
		t.Errorf("message missing warning: %q", n.Message)
	}
	if n.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestMultiNotifier_CollectsChannelErrors(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(&recordingChannel{err: errors.New("down")})
	mn.AddChannel(NewLogChannel(zerolog.Nop()))

	err := mn.SendSkip(context.Background(), "no valid pair")
	if err == nil || !strings.Contains(err.Error(), "recording: down") {
		t.Errorf("SendSkip() error = %v", err)
	}
}

func TestMultiNotifier_SendError(t *testing.T) {
	rec := &recordingChannel{}
	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(rec)

	if err := mn.SendError(context.Background(), errors.New("order rejected"), "entry phase"); err != nil {
		t.Fatalf("SendError() error = %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].Type != NotificationError {
		t.Fatalf("sent = %+v, want one error notification", rec.sent)
	}
	if got := rec.sent[0].Data["context"]; got != "entry phase" {
		t.Errorf("context = %v, want entry phase", got)
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mn := NewMultiNotifier(config.NotificationConfig{
		Enabled: true,
		Webhook: config.WebhookConfig{Enabled: true, URL: srv.URL},
	})
	snap := &models.EntrySnapshot{Date: "2026-10-19", Mode: models.ModeLive, CallSymbol: "C", PutSymbol: "P", EntryCombinedPremium: 24.2}
	if err := mn.SendEntry(context.Background(), snap); err != nil {
		t.Fatalf("SendEntry() error = %v", err)
	}
	if got["type"] != string(NotificationEntry) {
		t.Errorf("payload type = %v", got["type"])
	}
}

func TestWebhookNotifier_DisabledWithoutURL(t *testing.T) {
	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true})
	if w.IsEnabled() {
		t.Error("webhook without URL should be disabled")
	}
	if err := w.Send(context.Background(), Notification{}); err != nil {
		t.Errorf("disabled Send() error = %v", err)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	if err := w.Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Error("expected error on 502")
	}
}
