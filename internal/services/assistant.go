package services

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
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ParseOutcome discriminates the assistant result.
type ParseOutcome string

const (
	// ParseMatched carries both a member and an amount.
	ParseMatched ParseOutcome = "matched"
	// ParseUnmatched is a valid reply that could not identify member or amount.
	ParseUnmatched ParseOutcome = "unmatched"
	// ParseFallback means the assistant failed or answered garbage.
	ParseFallback ParseOutcome = "fallback"
)

// PaymentParse is what the assistant understood from a free-text payment
// message. Only ParseMatched guarantees MemberID and Amount are set.
type PaymentParse struct {
	Outcome     ParseOutcome     `json:"outcome"`
	MemberID    *string          `json:"member_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Confidence  float64          `json:"confidence"`
	Reasoning   string           `json:"reasoning"`
	Suggestions []string         `json:"suggestions"`
}

// assistantReply is the JSON object the model is instructed to return.
type assistantReply struct {
	MemberID    *string          `json:"member_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Confidence  *float64         `json:"confidence" validate:"required,gte=0,lte=1"`
	Reasoning   string           `json:"reasoning" validate:"required"`
	Suggestions []string         `json:"suggestions" validate:"dive,required"`
}

var defaultSuggestions = []string{
	"Mention the member's name exactly as registered",
	"Include the amount in rupiah, e.g. 18000",
	"Record the payment manually from the payments page",
}

const assistantSystemPrompt = `You read payment confirmations sent to a badminton club treasurer.
Using the provided context (members and outstanding payments), answer with a single JSON object:
{"member_id": string|null, "amount": number|null, "confidence": number between 0 and 1,
"reasoning": string, "suggestions": [string]}. Do not add any other text.`

// AssistantService calls an OpenAI-compatible chat completion endpoint.
type AssistantService struct {
	baseURL  string
	apiKey   string
	model    string
	client   *http.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	log      *zap.Logger
}

func NewAssistantService(baseURL, apiKey, model string, rps float64, log *zap.Logger) *AssistantService {
	if rps <= 0 {
		rps = 1
	}
	return &AssistantService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		validate: validator.New(),
		log:      log,
	}
}

// ParsePayment never fails: any upstream or decoding problem is turned into
// the fallback result.
func (s *AssistantService) ParsePayment(ctx context.Context, message string, hints map[string]any) PaymentParse {
	if strings.TrimSpace(message) == "" {
		return Fallback("message is empty")
	}
	if s.baseURL == "" {
		return Fallback("assistant is not configured")
	}

	content, err := s.complete(ctx, message, hints)
	if err != nil {
		s.log.Warn("assistant request failed", zap.Error(err))
		return Fallback(err.Error())
	}

	parsed, err := s.ParseResult(content)
	if err != nil {
		s.log.Warn("assistant reply rejected", zap.Error(err), zap.String("content", truncate(content, 500)))
		return Fallback(err.Error())
	}
	return parsed
}

// Fallback is the result returned whenever the assistant cannot be used.
func Fallback(reason string) PaymentParse {
	return PaymentParse{
		Outcome:     ParseFallback,
		Confidence:  0,
		Reasoning:   "Failed to parse payment message: " + reason,
		Suggestions: append([]string(nil), defaultSuggestions...),
	}
}

// ParseResult decodes and validates the model's JSON reply. Markdown code
// fences around the object are tolerated.
func (s *AssistantService) ParseResult(content string) (PaymentParse, error) {
	raw := stripCodeFence(content)

	var reply assistantReply
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return PaymentParse{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.validate.Struct(reply); err != nil {
		return PaymentParse{}, fmt.Errorf("invalid reply: %w", err)
	}
	if reply.Amount != nil && reply.Amount.IsNegative() {
		return PaymentParse{}, errors.New("invalid reply: amount is negative")
	}
	if reply.MemberID != nil && strings.TrimSpace(*reply.MemberID) == "" {
		reply.MemberID = nil
	}

	out := PaymentParse{
		Outcome:     ParseUnmatched,
		MemberID:    reply.MemberID,
		Amount:      reply.Amount,
		Confidence:  *reply.Confidence,
		Reasoning:   reply.Reasoning,
		Suggestions: reply.Suggestions,
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	if out.MemberID != nil && out.Amount != nil {
		out.Outcome = ParseMatched
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *AssistantService) complete(ctx context.Context, message string, hints map[string]any) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	if hints == nil {
		hints = map[string]any{}
	}
	contextJSON, err := json.Marshal(hints)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: assistantSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Context: %s\n\nMessage: %s", contextJSON, message)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("invalid completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
