package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/services"
)

// maxNotificationBytes bounds the Midtrans webhook body.
const maxNotificationBytes = 1 << 20

// PaymentHandler serves conversions, system-wide cleanup and online payment.
type PaymentHandler struct {
	conversion *services.ConversionService
	reconcile  *services.ReconcileService
	gateway    *services.GatewayService
	appURL     string
	log        *zap.Logger
}

func NewPaymentHandler(conversion *services.ConversionService, reconcile *services.ReconcileService, gateway *services.GatewayService, appURL string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		conversion: conversion,
		reconcile:  reconcile,
		gateway:    gateway,
		appURL:     strings.TrimRight(appURL, "/"),
		log:        log,
	}
}

type cleanupRequest struct {
	DryRun *bool `json:"dry_run"`
}

// ConvertToMembership POST /api/payments/:id/convert-to-membership
func (h *PaymentHandler) ConvertToMembership(c echo.Context) error {
	result, err := h.conversion.ToMembership(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, result)
}

// ConvertToSession POST /api/payments/:id/convert-to-session
func (h *PaymentHandler) ConvertToSession(c echo.Context) error {
	result, err := h.conversion.ToSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, result)
}

// CleanupDuplicates runs the system-wide duplicate sweep. The body's dry_run
// defaults to true.
// POST /api/payments/duplicates/cleanup
func (h *PaymentHandler) CleanupDuplicates(c echo.Context) error {
	var req cleanupRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	dryRun := req.DryRun == nil || *req.DryRun
	h.log.Info("system-wide duplicate cleanup requested",
		zap.String("user_uid", getStringFromContext(c, "userUID")),
		zap.Bool("dry_run", dryRun),
	)

	report, err := h.reconcile.SystemWideCleanup(c.Request().Context(), dryRun)
	if err != nil {
		return err
	}
	return ok(c, report)
}

// InitiatePayment opens (or resumes) a Snap checkout for a payment.
// POST /api/payments/:id/pay?force_new=
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	if h.gateway == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "online payment is not configured")
	}
	id := c.Param("id")
	forceNew := parseBoolParam(c.QueryParam("force_new"), false)
	callbackURL := h.appURL + "/payments/" + id

	result, err := h.gateway.InitiatePayment(c.Request().Context(), id, forceNew, callbackURL)
	if err != nil {
		return err
	}
	return ok(c, result)
}

// MidtransCallback receives Midtrans notifications. It is mounted outside the
// authenticated group; the signature key authenticates it.
// POST /webhooks/midtrans
func (h *PaymentHandler) MidtransCallback(c echo.Context) error {
	if h.gateway == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "online payment is not configured")
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		return apperr.Validation("unreadable notification body")
	}

	var n services.MidtransNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return apperr.Validation("invalid JSON payload")
	}
	if n.OrderID == "" {
		return apperr.Validation("order_id is required")
	}

	result, err := h.gateway.HandleNotification(c.Request().Context(), n, raw)
	if err != nil {
		h.log.Warn("midtrans notification rejected", zap.String("order_id", n.OrderID), zap.Error(err))
		return err
	}
	return ok(c, result)
}
