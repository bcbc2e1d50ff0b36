package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Bot API root used when none is configured.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSink posts a Markdown message to a chat through the Bot API.
type TelegramSink struct {
	client   *http.Client
	endpoint string
	chatID   string
	location *time.Location
}

// TelegramConfig configures a TelegramSink.
type TelegramConfig struct {
	APIURL   string
	Token    string
	ChatID   string
	Location *time.Location // click time is rendered in this zone; UTC when nil
	Client   *http.Client
}

func NewTelegramSink(cfg TelegramConfig) *TelegramSink {
	api := strings.TrimRight(cfg.APIURL, "/")
	if api == "" {
		api = DefaultTelegramAPI
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &TelegramSink{
		client:   client,
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", api, cfg.Token),
		chatID:   cfg.ChatID,
		location: loc,
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (s *TelegramSink) Notify(ctx context.Context, evt ClickEvent) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:    s.chatID,
		Text:      s.format(evt),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (s *TelegramSink) format(evt ClickEvent) string {
	var b strings.Builder
	b.WriteString("*⚡️ LINK CLICK NOTIFICATION*\n")
	b.WriteString("---------------------------------------------\n")
	fmt.Fprintf(&b, "*🔗 Short code:* `%s`\n", evt.Code)
	fmt.Fprintf(&b, "*➡️ Destination:* [Open full URL](%s)\n", evt.LongURL)
	fmt.Fprintf(&b, "*👁️‍🗨️ Client IP:* `%s`\n", evt.ClientIP)
	fmt.Fprintf(&b, "*⏰ Time:* %s\n", evt.Timestamp.In(s.location).Format("02/01/2006 15:04:05 MST"))
	b.WriteString("---------------------------------------------")
	return b.String()
}
