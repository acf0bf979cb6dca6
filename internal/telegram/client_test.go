package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/seismoalert/internal/models"
)

type fakeBot struct {
	failures int
	sent     []tgbotapi.MessageConfig
	calls    int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func testAlerts() []models.Alert {
	return []models.Alert{
		{
			ID:          "1",
			RuleName:    "Large Earthquake",
			Message:     "Large earthquake detected! Max magnitude: M7.1",
			Severity:    models.SeverityCritical,
			EventCount:  12,
			MaxMag:      7.1,
			TriggeredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "2",
			RuleName:    "High Seismicity Rate",
			Message:     "High seismicity rate: 12 events detected",
			Severity:    models.SeverityWarning,
			EventCount:  12,
			MaxMag:      7.1,
			TriggeredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"M7.1", "M7\\.1"},
		{"10 km SSW of Ridgecrest (CA)", "10 km SSW of Ridgecrest \\(CA\\)"},
		{"a_b*c", "a\\_b\\*c"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.expected {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestFormatAlerts(t *testing.T) {
	msg := formatAlerts(testAlerts())

	for _, want := range []string{
		"Seismic Alerts Triggered",
		"2024\\-03\\-01 12:00:00 UTC",
		"1\\. 🔴 *Large Earthquake*",
		"2\\. 🟠 *High Seismicity Rate*",
		"M7\\.1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNotify_RetriesThenSucceeds(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c, err := newClient(bot, "12345", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("newClient failed: %v", err)
	}

	if err := c.Notify(context.Background(), testAlerts()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if bot.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", bot.calls)
	}
	if len(bot.sent) != 1 || bot.sent[0].ChatID != 12345 {
		t.Fatalf("Unexpected sent messages %+v", bot.sent)
	}
	if bot.sent[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("Expected MarkdownV2 parse mode, got %q", bot.sent[0].ParseMode)
	}
}

func TestNotify_GivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c, _ := newClient(bot, "1", 2, time.Millisecond)

	if err := c.Notify(context.Background(), testAlerts()); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if bot.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", bot.calls)
	}
}

func TestNotify_NoAlerts(t *testing.T) {
	bot := &fakeBot{}
	c, _ := newClient(bot, "1", 1, time.Millisecond)
	if err := c.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify(nil) failed: %v", err)
	}
	if bot.calls != 0 {
		t.Errorf("Expected no message for zero alerts, got %d calls", bot.calls)
	}
}

func TestSendErrorAndRecovery(t *testing.T) {
	bot := &fakeBot{}
	c, _ := newClient(bot, "1", 1, time.Millisecond)

	if err := c.SendError(context.Background(), errors.New("usgs api returned status 503")); err != nil {
		t.Fatal(err)
	}
	if err := c.SendRecovery(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(bot.sent))
	}
	if !strings.Contains(bot.sent[1].Text, "after 3 failed cycle") {
		t.Errorf("Unexpected recovery text %q", bot.sent[1].Text)
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := newClient(&fakeBot{}, "not-a-number", 1, time.Second); err == nil {
		t.Error("Expected error for invalid chat ID")
	}
}
