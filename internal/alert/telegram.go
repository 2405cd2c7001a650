// Package alert delivers drift alerts to the shift manager via Telegram.
// It formats drift reports and classifications into readable messages and
// handles delivery with retry logic, plus a per-scope cooldown so one noisy
// stand does not flood the channel every window.
package alert

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/classifier"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	cooldown       time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewClient creates a new Telegram alert client.
func NewClient(cfg *config.Config) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	maxRetries := cfg.Telegram.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelayBase := cfg.Telegram.RetryDelayBase
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		cooldown:       cfg.Telegram.Cooldown,
		lastSent:       make(map[string]time.Time),
	}, nil
}

// SendDriftAlert notifies the shift manager about a significant drift window.
// Signals whose scope alerted within the cooldown are left out; when every
// signal is cooling down the whole message is suppressed.
func (c *Client) SendDriftAlert(report *models.DriftReport, result classifier.Result) error {
	signals := c.filterSignals(report.Signals, time.Now())
	if len(signals) == 0 {
		return nil
	}

	return c.send(formatDriftAlert(report.TimeWindow, signals, result))
}

// SendSummary sends the end-of-game drift summary.
func (c *Client) SendSummary(summary models.DriftSummary) error {
	return c.send(formatSummary(summary))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// filterSignals drops signals whose scope alerted within the cooldown and
// records the scopes that pass.
func (c *Client) filterSignals(signals []models.DriftSignal, now time.Time) []models.DriftSignal {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.DriftSignal
	for _, s := range signals {
		if sev := s.Severity(); sev != models.SeverityWarning && sev != models.SeverityCritical {
			continue
		}
		if last, ok := c.lastSent[s.Scope]; ok && now.Sub(last) < c.cooldown {
			continue
		}
		c.lastSent[s.Scope] = now
		out = append(out, s)
	}
	return out
}

func formatDriftAlert(timeWindow int, signals []models.DriftSignal, result classifier.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Drift alert* %s\n\n", escapeMarkdownV2(fmt.Sprintf("T%+dmin", timeWindow))))

	for _, s := range signals {
		line := fmt.Sprintf("[%s] %s %s %+.0f%%", strings.ToUpper(s.Severity()), s.Scope, s.DriftType, s.Magnitude*100)
		b.WriteString(escapeMarkdownV2(line))
		b.WriteString("\n")
	}

	if result.Cause != "" {
		b.WriteString(fmt.Sprintf("\nCause: *%s* ", escapeMarkdownV2(result.Cause)))
		b.WriteString(escapeMarkdownV2(fmt.Sprintf("(confidence %.0f%%)", result.Confidence*100)))
		b.WriteString("\n")
	}
	if result.AlertText != "" {
		b.WriteString(escapeMarkdownV2(result.AlertText))
		b.WriteString("\n")
	}
	return b.String()
}

func formatSummary(summary models.DriftSummary) string {
	var b strings.Builder
	b.WriteString("*Game drift summary*\n\n")
	b.WriteString(escapeMarkdownV2(fmt.Sprintf(
		"Windows: %d (%d with drift)\nSignals: %d (%d critical, %d warning)\nCumulative: %+.1f%%\nActual %d vs forecast %d\n",
		summary.TotalWindows, summary.WindowsWithDrift,
		summary.TotalSignals, summary.CriticalSignals, summary.WarningSignals,
		summary.CumulativeDrift*100,
		summary.TotalActual, summary.TotalForecast,
	)))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
