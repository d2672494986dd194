package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// maxMessageLen is the Telegram limit for a single text message.
const maxMessageLen = 4096

// Notifier posts weekly reports to a Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot and binds it to the configured chat.
func NewNotifier(cfg config.TelegramConfig, logger *slog.Logger) (*Notifier, error) {
	return newNotifier(cfg, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second}, logger)
}

func newNotifier(cfg config.TelegramConfig, endpoint string, client *http.Client, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Notifier{api: api, chatID: cfg.ChatID, logger: logger}, nil
}

// PublishReport sends the formatted report as an HTML message.
func (n *Notifier) PublishReport(ctx context.Context, report domain.WeeklyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatReport(report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := n.api.Send(msg)
	if err != nil {
		return fmt.Errorf("%w: telegram send: %v", domain.ErrCollaborator, err)
	}
	n.logger.Info("weekly report published", "year", report.Year, "week", report.WeekNumber, "message_id", sent.MessageID)
	return nil
}

// FormatReport renders a report as Telegram HTML. The summary is cut so the
// whole message fits in one Telegram message.
func FormatReport(r domain.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Weekly report %d-W%02d</b>\n", r.Year, r.WeekNumber)
	fmt.Fprintf(&b, "%s to %s\n\n", r.WeekStart.Format("2006-01-02"), r.WeekEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "📝 Posts: %d  💬 Comments: %d\n", r.PostCount, r.CommentCount)
	fmt.Fprintf(&b, "%s Sentiment: <b>%s</b> (%d)\n", sentimentIcon(r.SentimentLabel), r.SentimentLabel, int(r.SentimentScore))
	fmt.Fprintf(&b, "👍 %d  😐 %d  👎 %d\n", r.Breakdown.Positive, r.Breakdown.Neutral, r.Breakdown.Negative)

	if r.Summary == "" {
		return b.String()
	}
	b.WriteString("\n")
	room := maxMessageLen - utf8.RuneCountInString(b.String()) - len("<i></i>")
	b.WriteString("<i>")
	b.WriteString(escapeWithin(r.Summary, room))
	b.WriteString("</i>")
	return b.String()
}

// escapeWithin HTML-escapes s and cuts it with an ellipsis so the escaped
// form is at most limit runes.
func escapeWithin(s string, limit int) string {
	if full := html.EscapeString(s); utf8.RuneCountInString(full) <= limit {
		return full
	}
	var out strings.Builder
	used := 0
	for _, r := range s {
		e := html.EscapeString(string(r))
		n := utf8.RuneCountInString(e)
		if used+n > limit-1 {
			break
		}
		out.WriteString(e)
		used += n
	}
	out.WriteString("…")
	return out.String()
}

func sentimentIcon(label domain.SentimentLabel) string {
	switch label {
	case domain.Positive:
		return "🟢"
	case domain.Negative:
		return "🔴"
	default:
		return "⚪"
	}
}
