package handlers

import (
	"github.com/labstack/echo/v4"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/services"
)

// FeeHandler serves fee quotes, the session calendar and session billing.
type FeeHandler struct {
	fees     *services.FeeService
	sessions *services.SessionPaymentService
}

func NewFeeHandler(fees *services.FeeService, sessions *services.SessionPaymentService) *FeeHandler {
	return &FeeHandler{fees: fees, sessions: sessions}
}

type sessionRosterRequest struct {
	SessionDate      string   `json:"session_date" validate:"required"`
	MatchID          *string  `json:"match_id"`
	MemberIDs        []string `json:"member_ids" validate:"required,min=1,dive,required"`
	ShuttlecocksUsed int      `json:"shuttlecocks_used" validate:"gte=0"`
}

type previewResponse struct {
	Results []billing.SessionPaymentResult `json:"results"`
	Summary billing.PaymentSummary         `json:"summary"`
}

// MonthlyFee quotes a month of membership.
// GET /api/fees/monthly?year=&month=
func (h *FeeHandler) MonthlyFee(c echo.Context) error {
	year, err := parseIntParam("year", c.QueryParam("year"))
	if err != nil {
		return err
	}
	month, err := parseIntParam("month", c.QueryParam("month"))
	if err != nil {
		return err
	}

	fee, err := h.fees.MonthlyFee(c.Request().Context(), year, month)
	if err != nil {
		return err
	}
	return ok(c, fee)
}

// Sessions lists the weekly session dates in [start, end].
// GET /api/sessions?start=&end=
func (h *FeeHandler) Sessions(c echo.Context) error {
	start, err := parseDateParam("start", c.QueryParam("start"))
	if err != nil {
		return err
	}
	end, err := parseDateParam("end", c.QueryParam("end"))
	if err != nil {
		return err
	}
	if end.Before(start) {
		return apperr.Validation("end must not be before start")
	}

	dates := h.fees.Sessions(start, end)
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(billing.DateLayout))
	}
	return ok(c, map[string]interface{}{
		"weekday":  h.fees.Calculator().Schedule().Weekday.String(),
		"sessions": out,
	})
}

// Preview prices a roster without storing anything.
// POST /api/sessions/payments/preview
func (h *FeeHandler) Preview(c echo.Context) error {
	var req sessionRosterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := parseDateParam("session_date", req.SessionDate)
	if err != nil {
		return err
	}

	results, summary, err := h.fees.Preview(c.Request().Context(), req.MemberIDs, date, req.ShuttlecocksUsed)
	if err != nil {
		return err
	}
	return ok(c, previewResponse{Results: results, Summary: summary})
}

// GenerateSessionPayments bills an explicit roster.
// POST /api/sessions/payments
func (h *FeeHandler) GenerateSessionPayments(c echo.Context) error {
	var req sessionRosterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := parseDateParam("session_date", req.SessionDate)
	if err != nil {
		return err
	}

	result, err := h.sessions.Generate(c.Request().Context(), services.GenerateRequest{
		SessionDate:      date,
		MatchID:          req.MatchID,
		MemberIDs:        req.MemberIDs,
		ShuttlecocksUsed: req.ShuttlecocksUsed,
	})
	if err != nil {
		return err
	}
	return created(c, result)
}

// GenerateMatchPayments bills the recorded attendance of a match.
// POST /api/matches/:id/payments
func (h *FeeHandler) GenerateMatchPayments(c echo.Context) error {
	result, err := h.sessions.GenerateForMatch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return created(c, result)
}
