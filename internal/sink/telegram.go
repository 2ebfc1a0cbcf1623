package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"PortfolioTracker/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts the window summary to a chat, at most once per Every.
// Delivery runs in the background so a slow chat API never holds up the pass;
// Timeout bounds one delivery including retries.
type Telegram struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	Every      time.Duration
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client

	mu      sync.Mutex
	last    time.Time
	sending bool
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewTelegram creates a Telegram sink with optional proxy support.
func NewTelegram(botToken, chatID, proxyURL string, every time.Duration) *Telegram {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Telegram{
		BaseURL:    telegramAPI,
		BotToken:   botToken,
		ChatID:     chatID,
		Every:      every,
		Timeout:    20 * time.Second,
		MaxRetries: 2,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		now: time.Now,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Write starts a delivery unless one is running or the last successful one
// is younger than Every. A failed delivery is logged and retried on the next pass.
func (t *Telegram) Write(ctx context.Context, w *model.Window) error {
	t.mu.Lock()
	now := t.now()
	if t.sending || (!t.last.IsZero() && now.Sub(t.last) < t.Every) {
		t.mu.Unlock()
		return nil
	}
	t.sending = true
	t.mu.Unlock()

	text := "📈 " + FormatSummary(w)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.Timeout)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		err := t.SendWithRetry(sendCtx, text)

		t.mu.Lock()
		t.sending = false
		if err == nil {
			t.last = now
		}
		t.mu.Unlock()
		if err != nil {
			log.Printf("[ERROR] telegram summary: %v", err)
		}
	}()
	return nil
}

// Wait blocks until the running delivery, if any, has finished.
func (t *Telegram) Wait() { t.wg.Wait() }

// Send sends a message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	body, err := json.Marshal(map[string]string{
		"chat_id": t.ChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *Telegram) SendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	for i := 0; i <= t.MaxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.MaxRetries {
			break
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		log.Printf("[WARN] telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, t.MaxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", t.MaxRetries+1, lastErr)
}
