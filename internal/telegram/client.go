// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats triggered seismic alerts into human-readable messages and handles
// delivery with retry logic for reliability.
//
// The client uses MarkdownV2 formatting and implements alerts.Notifier so it can
// be combined with other notification channels.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// sender is the subset of *tgbotapi.BotAPI the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Name implements alerts.Notifier.
func (c *Client) Name() string { return "telegram" }

// Notify sends one message listing the triggered alerts.
func (c *Client) Notify(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return c.send(ctx, formatAlerts(alerts))
}

// SendError reports a failed monitoring cycle.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	msg := "⚠️ *Monitoring cycle failed*\n\n" + escapeMarkdownV2(cycleErr.Error())
	return c.send(ctx, msg)
}

// SendRecovery reports that monitoring works again after failures.
func (c *Client) SendRecovery(ctx context.Context, failures int) error {
	msg := fmt.Sprintf("✅ *Monitoring recovered* after %d failed cycle\\(s\\)", failures)
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

var severityEmoji = map[string]string{
	models.SeverityCritical: "🔴",
	models.SeverityWarning:  "🟠",
	models.SeverityInfo:     "🔵",
}

// formatAlerts formats alerts into a Telegram MarkdownV2 message
func formatAlerts(alerts []models.Alert) string {
	var b strings.Builder
	b.WriteString("🚨 *Seismic Alerts Triggered*\n\n")

	dateStr := escapeMarkdownV2(alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", dateStr)

	for i, a := range alerts {
		emoji, ok := severityEmoji[a.Severity]
		if !ok {
			emoji = "⚪"
		}
		fmt.Fprintf(&b, "%d\\. %s *%s*\n", i+1, emoji, escapeMarkdownV2(a.RuleName))
		fmt.Fprintf(&b, "   %s\n", escapeMarkdownV2(a.Message))
		fmt.Fprintf(&b, "   📊 Events: %d, max %s\n\n", a.EventCount, escapeMarkdownV2(fmt.Sprintf("M%.1f", a.MaxMag)))
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
