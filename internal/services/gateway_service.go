package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/store"
)

type gatewayStore interface {
	store.PaymentStore
	store.MemberStore
	store.GatewayStore
}

// MidtransNotification is the webhook body Midtrans posts on status changes.
type MidtransNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id" validate:"required"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

type InitiatePaymentResult struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	IsExisting  bool   `json:"is_existing"`
}

type NotificationResult struct {
	OrderID       string               `json:"order_id"`
	PaymentID     string               `json:"payment_id,omitempty"`
	Handled       bool                 `json:"handled"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

type paymentPaidEvent struct {
	PaymentID  string `json:"payment_id"`
	MemberID   string `json:"member_id"`
	OrderID    string `json:"order_id"`
	PaidAmount int64  `json:"paid_amount"`
	Method     string `json:"method"`
}

// GatewayService lets members settle a pending payment online.
type GatewayService struct {
	client GatewayClient
	store  gatewayStore
	locker Locker
	pub    mq.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewGatewayService(client GatewayClient, st gatewayStore, locker Locker, pub mq.Publisher, log *zap.Logger) *GatewayService {
	return &GatewayService{client: client, store: st, locker: locker, pub: pub, log: log, now: time.Now}
}

func isPaidStatus(s string) bool {
	return s == "settlement" || s == "capture"
}

func isClosedStatus(s string) bool {
	return s == "deny" || s == "expire" || s == "cancel" || s == "failure"
}

// InitiatePayment opens a Snap checkout for the outstanding amount of a
// payment. A still-pending checkout is reused unless forceNew is set.
func (s *GatewayService) InitiatePayment(ctx context.Context, paymentID string, forceNew bool, callbackURL string) (InitiatePaymentResult, error) {
	if paymentID == "" {
		return InitiatePaymentResult{}, apperr.Validation("payment id is required")
	}
	release, err := s.locker.Acquire(ctx, paymentLockKey(paymentID), defaultLockTTL)
	if err != nil {
		return InitiatePaymentResult{}, err
	}
	defer release()

	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return InitiatePaymentResult{}, err
	}
	if payment.IsSettled() {
		return InitiatePaymentResult{}, apperr.Precondition("payment is already %s", payment.Status)
	}
	outstanding := payment.Amount - payment.PaidAmount
	if outstanding <= 0 {
		return InitiatePaymentResult{}, apperr.Precondition("nothing left to pay on this payment")
	}

	existing, err := s.store.ActiveGatewaySession(ctx, paymentID)
	if err != nil {
		return InitiatePaymentResult{}, err
	}
	if existing != nil {
		reused, err := s.resumeSession(ctx, existing, forceNew)
		if err != nil {
			return InitiatePaymentResult{}, err
		}
		if reused != nil {
			return *reused, nil
		}
	}

	member, err := s.store.GetMember(ctx, payment.MemberID)
	if err != nil {
		return InitiatePaymentResult{}, err
	}

	orderID := fmt.Sprintf("payment-%s-%d", payment.ID, s.now().Unix())
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: outstanding,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: member.Name,
			Email: member.Email,
			Phone: member.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    payment.ID,
				Name:  fmt.Sprintf("%s fee %s", payment.Type, payment.DueDate.Format("2006-01-02")),
				Price: outstanding,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.client.CreateTransaction(req)
	if err != nil {
		return InitiatePaymentResult{}, apperr.Upstream("payment gateway unavailable", err)
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)
	session := models.GatewaySession{
		PaymentID:        payment.ID,
		MemberID:         payment.MemberID,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		Amount:           outstanding,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.store.SaveGatewaySession(ctx, &session); err != nil {
		return InitiatePaymentResult{}, err
	}

	return InitiatePaymentResult{
		OrderID:     orderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// resumeSession returns the existing checkout when it can be reused, or nil
// after closing it so a new one gets created.
func (s *GatewayService) resumeSession(ctx context.Context, session *models.GatewaySession, forceNew bool) (*InitiatePaymentResult, error) {
	status, err := s.client.TransactionStatus(session.OrderID)
	switch {
	case err != nil:
		s.log.Warn("check gateway session, closing it", zap.String("order_id", session.OrderID), zap.Error(err))
	case isPaidStatus(status):
		return nil, apperr.Precondition("payment already made, waiting for gateway confirmation")
	case isClosedStatus(status):
	case forceNew:
		if err := s.client.CancelTransaction(session.OrderID); err != nil {
			s.log.Warn("cancel gateway session", zap.String("order_id", session.OrderID), zap.Error(err))
		}
	default:
		var resp snap.Response
		if err := json.Unmarshal(session.ResponseMetadata, &resp); err == nil && resp.Token != "" {
			return &InitiatePaymentResult{
				OrderID:     session.OrderID,
				Token:       resp.Token,
				RedirectURL: resp.RedirectURL,
				IsExisting:  true,
			}, nil
		}
	}

	session.IsActive = false
	if err := s.store.SaveGatewaySession(ctx, session); err != nil {
		return nil, err
	}
	return nil, nil
}

// HandleNotification applies a gateway webhook. Every notification is kept in
// the callback history, including ones that fail verification.
func (s *GatewayService) HandleNotification(ctx context.Context, n MidtransNotification, raw []byte) (NotificationResult, error) {
	history := models.PaymentCallbackHistory{
		PaymentGateway:    models.PaymentGatewayMidtrans,
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		Metadata:          raw,
	}
	if err := s.store.CreateCallbackHistory(ctx, &history); err != nil {
		s.log.Warn("store callback history", zap.String("order_id", n.OrderID), zap.Error(err))
	}

	if !s.client.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return NotificationResult{}, apperr.Validation("invalid signature")
	}

	result := NotificationResult{OrderID: n.OrderID}
	session, err := s.store.GetGatewaySessionByOrderID(ctx, n.OrderID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			result.Reason = "unknown order"
			return result, nil
		}
		return NotificationResult{}, err
	}
	result.PaymentID = session.PaymentID

	release, err := s.locker.Acquire(ctx, paymentLockKey(session.PaymentID), defaultLockTTL)
	if err != nil {
		return NotificationResult{}, err
	}
	defer release()

	switch {
	case isPaidStatus(n.TransactionStatus) && (n.FraudStatus == "" || n.FraudStatus == "accept"):
		return s.markPaid(ctx, session, n, result)
	case isClosedStatus(n.TransactionStatus) || n.FraudStatus == "deny":
		session.IsActive = false
		if err := s.store.SaveGatewaySession(ctx, &session); err != nil {
			return NotificationResult{}, err
		}
		result.Handled = true
		result.Reason = "checkout closed: " + n.TransactionStatus
		return result, nil
	default:
		result.Reason = "no action for status " + n.TransactionStatus
		return result, nil
	}
}

func (s *GatewayService) markPaid(ctx context.Context, session models.GatewaySession, n MidtransNotification, result NotificationResult) (NotificationResult, error) {
	payment, err := s.store.GetPayment(ctx, session.PaymentID)
	if err != nil {
		return NotificationResult{}, err
	}
	if !session.IsActive || payment.IsSettled() {
		result.PaymentStatus = payment.Status
		result.Reason = "already processed"
		return result, nil
	}

	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return NotificationResult{}, apperr.Validation("invalid gross_amount %q", n.GrossAmount)
	}
	paidNow := gross.Round(0).IntPart()
	paidAt := s.now()

	payment.PaidAmount += paidNow
	payment.PaidDate = &paidAt
	payment.PaymentMethod = n.PaymentType
	payment.Status = models.PaymentStatusPartial
	if payment.PaidAmount >= payment.Amount {
		payment.Status = models.PaymentStatusPaid
	}
	updated, err := s.store.UpdatePayment(ctx, payment)
	if err != nil {
		return NotificationResult{}, err
	}

	session.IsActive = false
	if err := s.store.SaveGatewaySession(ctx, &session); err != nil {
		s.log.Warn("close gateway session", zap.String("order_id", session.OrderID), zap.Error(err))
	}

	event := paymentPaidEvent{
		PaymentID:  updated.ID,
		MemberID:   updated.MemberID,
		OrderID:    n.OrderID,
		PaidAmount: paidNow,
		Method:     n.PaymentType,
	}
	if err := s.pub.PublishJSON(ctx, mq.KeyPaymentPaid, event); err != nil {
		s.log.Warn("publish payment paid", zap.String("payment_id", updated.ID), zap.Error(err))
	}

	result.Handled = true
	result.PaymentStatus = updated.Status
	return result, nil
}
