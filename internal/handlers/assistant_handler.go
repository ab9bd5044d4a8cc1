package handlers

import (
	"github.com/labstack/echo/v4"

	"badminton_club/internal/services"
)

type AssistantHandler struct {
	assistant *services.AssistantService
}

func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type parsePaymentRequest struct {
	Message string                 `json:"message" validate:"required"`
	Context map[string]interface{} `json:"context"`
}

// ParsePayment reads a free-text payment confirmation. The reply is always a
// PaymentParse; failures come back as the fallback outcome.
// POST /api/assistant/parse-payment
func (h *AssistantHandler) ParsePayment(c echo.Context) error {
	var req parsePaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if h.assistant == nil {
		return ok(c, services.Fallback("assistant is not configured"))
	}
	return ok(c, h.assistant.ParsePayment(c.Request().Context(), req.Message, req.Context))
}
