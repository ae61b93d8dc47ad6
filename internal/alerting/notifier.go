package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// telegramMaxText is the sendMessage text limit.
const telegramMaxText = 4096

// Notification 封装一次简报推送的内容。
type Notification struct {
	RunID       string
	GeneratedAt time.Time
	Narrative   string
	Failed      bool
	Context     string
	// WithContext 为 true 时附带原始上下文。
	WithContext bool
}

// Notifier 定义简报输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 推送器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", withoutURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", withoutURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Bool("failed", note.Failed).
		Msg("简报已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Pre-Market Bias ES/NQ]\n")
	if !note.GeneratedAt.IsZero() {
		builder.WriteString(note.GeneratedAt.Format("2006-01-02 15:04 MST"))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	if note.Failed {
		builder.WriteString("⚠️ ")
	}
	builder.WriteString(note.Narrative)
	builder.WriteString("\n")
	if note.WithContext && note.Context != "" {
		builder.WriteString("\n--- context ---\n")
		builder.WriteString(note.Context)
		builder.WriteString("\n")
	}
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("\nrun %s", note.RunID))
	}
	return truncate(builder.String(), telegramMaxText)
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

var _ Notifier = (*TelegramNotifier)(nil)

// withoutURL 去掉 url.Error 中的完整地址, 其中含有 bot token。
func withoutURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
