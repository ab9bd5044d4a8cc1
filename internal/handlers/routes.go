package handlers

import (
	"github.com/labstack/echo/v4"
)

// Handlers groups every API handler for route registration.
type Handlers struct {
	Fees      *FeeHandler
	Members   *MemberHandler
	Payments  *PaymentHandler
	Assistant *AssistantHandler
}

// Register mounts the API under /api behind the given auth middleware and the
// public Midtrans webhook.
func Register(e *echo.Echo, h Handlers, auth echo.MiddlewareFunc) {
	e.POST("/webhooks/midtrans", h.Payments.MidtransCallback)

	api := e.Group("/api", auth)

	api.GET("/fees/monthly", h.Fees.MonthlyFee)
	api.GET("/sessions", h.Fees.Sessions)
	api.POST("/sessions/payments/preview", h.Fees.Preview)
	api.POST("/sessions/payments", h.Fees.GenerateSessionPayments)
	api.POST("/matches/:id/payments", h.Fees.GenerateMatchPayments)

	api.GET("/members", h.Members.ListMembers)
	api.POST("/members", h.Members.CreateMember)
	api.GET("/members/:id", h.Members.GetMember)
	api.GET("/members/:id/membership-status", h.Members.MembershipStatus)
	api.POST("/members/:id/memberships", h.Members.OptIn)
	api.POST("/members/:id/duplicates/cleanup", h.Members.CleanupDuplicates)

	api.POST("/payments/:id/convert-to-membership", h.Payments.ConvertToMembership)
	api.POST("/payments/:id/convert-to-session", h.Payments.ConvertToSession)
	api.POST("/payments/duplicates/cleanup", h.Payments.CleanupDuplicates)
	api.POST("/payments/:id/pay", h.Payments.InitiatePayment)

	api.POST("/assistant/parse-payment", h.Assistant.ParsePayment)
}
