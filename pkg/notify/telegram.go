package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Telegram forwards notifications at or above a minimum level to a
// Telegram chat via the Bot API.
type Telegram struct {
	botToken   string
	chatID     string
	minLevel   Level
	httpClient *http.Client
	enabled    bool
	baseURL    string // overridable for testing; defaults to Telegram API
	log        logrus.FieldLogger
}

// NewTelegram creates a Telegram notifier. It is enabled only when both
// botToken and chatID are non-empty.
func NewTelegram(botToken, chatID string, minLevel Level, log logrus.FieldLogger) *Telegram {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		minLevel:   minLevel,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    botToken != "" && chatID != "",
		log:        log.WithField("component", "telegram"),
	}
}

// Enabled reports whether the notifier is active
func (t *Telegram) Enabled() bool { return t.enabled }

// Notify implements Notifier. Delivery failures are logged, never returned.
func (t *Telegram) Notify(n Notification) {
	if !t.enabled || n.Level < t.minLevel {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.Send(ctx, format(n)); err != nil {
		t.log.WithError(err).Warn("telegram delivery failed")
	}
}

func format(n Notification) string {
	title := "Info"
	switch n.Level {
	case LevelSuccess:
		title = "Success"
	case LevelError:
		title = "Error"
	}
	return fmt.Sprintf("<b>stockctl %s</b>\n%s", title, html.EscapeString(n.Message))
}

// Send posts a message to the configured Telegram chat
func (t *Telegram) Send(ctx context.Context, msg string) error {
	if !t.enabled {
		return nil
	}

	endpoint := t.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	}
	vals := url.Values{
		"chat_id":    {t.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}
