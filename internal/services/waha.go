package services

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

// Messenger delivers a text message to a WhatsApp chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// WahaService sends WhatsApp messages through a WAHA HTTP API instance.
type WahaService struct {
	baseURL string
	apiKey  string
	session string
	client  *http.Client
	// pause is time.Sleep outside tests
	pause func(time.Duration)
}

func NewWahaService(baseURL, apiKey, session string) *WahaService {
	if baseURL == "" {
		baseURL = "http://waha:3000"
	}
	if session == "" {
		session = "default"
	}
	return &WahaService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		session: session,
		client:  &http.Client{Timeout: 15 * time.Second},
		pause:   time.Sleep,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, endpoint string, payload map[string]string) error {
	payload["session"] = s.session
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// NormalizeChatID normalizes WhatsApp chat IDs by adding required suffixes and standardizing country codes
func NormalizeChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.TrimPrefix(chatID, "+")
	chatID = strings.NewReplacer(" ", "", "-", "").Replace(chatID)

	// Indonesian local numbers start with 0
	if strings.HasPrefix(chatID, "0") {
		chatID = "62" + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage mimics a person typing: seen, typing, stop typing, then send.
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID)

	steps := []struct {
		endpoint string
		wait     time.Duration
		what     string
	}{
		{"/api/sendSeen", 100 * time.Millisecond, "send seen"},
		{"/api/startTyping", 150 * time.Millisecond, "start typing"},
		{"/api/stopTyping", 50 * time.Millisecond, "stop typing"},
	}
	for _, step := range steps {
		if err := s.makeRequest(ctx, step.endpoint, map[string]string{"chatId": chatID}); err != nil {
			return fmt.Errorf("failed to %s: %w", step.what, err)
		}
		s.pause(step.wait)
	}

	if err := s.makeRequest(ctx, "/api/sendText", map[string]string{"chatId": chatID, "text": text}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}
