package nara

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/jaego/internal/model"
)

// Notifier announces newly found bids.
type Notifier interface {
	Notify(ctx context.Context, cfg Config, bids []model.BidItem) error
}

// Telegram sends bot messages. The bot token comes from the monitoring
// config when set, otherwise from the server configuration.
type Telegram struct {
	apiURL string
	token  string
	client *http.Client
}

func NewTelegram(apiURL, token string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Telegram{apiURL: strings.TrimRight(apiURL, "/"), token: token, client: client}
}

func (t *Telegram) Notify(ctx context.Context, cfg Config, bids []model.BidItem) error {
	token := cfg.TelegramBotToken
	if token == "" {
		token = t.token
	}
	if token == "" {
		return errors.New("telegram bot token is not configured")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":                  cfg.TelegramChatID,
		"text":                     formatMessage(bids),
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("encoding telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/bot"+token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

const maxMessageBids = 20

func formatMessage(bids []model.BidItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "새 입찰공고 %d건\n", len(bids))
	for i, bid := range bids {
		if i == maxMessageBids {
			fmt.Fprintf(&b, "\n외 %d건", len(bids)-maxMessageBids)
			break
		}
		fmt.Fprintf(&b, "\n[%s] %s", bid.Source, bid.Title)
		if bid.Company != "" {
			fmt.Fprintf(&b, "\n  %s", bid.Company)
		}
		if bid.Price != "" || bid.Deadline != "" {
			fmt.Fprintf(&b, "\n  %s / 마감 %s", bid.Price, bid.Deadline)
		}
		if bid.URL != "" {
			fmt.Fprintf(&b, "\n  %s", bid.URL)
		}
	}
	return b.String()
}

// Locker grants a lease so that only one instance searches per tick.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker leases keys with SET NX PX. Leases expire on their own.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}
	return ok, nil
}
