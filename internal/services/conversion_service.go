package services

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/obs"
	"badminton_club/internal/store"
)

type conversionStore interface {
	store.PaymentStore
	store.MembershipStore
}

// ConversionResult is the stored payment after a conversion plus what happened
// to the month's membership record.
type ConversionResult struct {
	Payment           models.Payment     `json:"payment"`
	PreviousAmount    int64              `json:"previous_amount"`
	PreviousType      models.PaymentType `json:"previous_type"`
	TargetYear        int                `json:"target_year"`
	TargetMonth       int                `json:"target_month"`
	WeeksInMonth      int                `json:"weeks_in_month,omitempty"`
	MembershipCreated bool               `json:"membership_created"`
	MembershipRemoved bool               `json:"membership_removed"`
	Message           string             `json:"message"`
}

type paymentConvertedEvent struct {
	PaymentID      string             `json:"payment_id"`
	MemberID       string             `json:"member_id"`
	From           models.PaymentType `json:"from"`
	To             models.PaymentType `json:"to"`
	PreviousAmount int64              `json:"previous_amount"`
	Amount         int64              `json:"amount"`
}

// ConversionService switches stored payments between session and membership
// billing. One writer per payment is enforced with a lock and the update is
// a compare-and-swap on the payment version. Membership bookkeeping for a
// member runs under the member lock.
type ConversionService struct {
	conv   *billing.Converter
	store  conversionStore
	locker Locker
	pub    mq.Publisher
	log    *zap.Logger
}

func NewConversionService(conv *billing.Converter, st conversionStore, locker Locker, pub mq.Publisher, log *zap.Logger) *ConversionService {
	return &ConversionService{conv: conv, store: st, locker: locker, pub: pub, log: log}
}

// ToMembership converts a pending session payment into the monthly fee.
func (s *ConversionService) ToMembership(ctx context.Context, paymentID string) (ConversionResult, error) {
	return s.convert(ctx, paymentID, "ConversionService.ToMembership", s.conv.SessionToMembership)
}

// ToSession converts a pending monthly payment back into the session fee.
func (s *ConversionService) ToSession(ctx context.Context, paymentID string) (ConversionResult, error) {
	return s.convert(ctx, paymentID, "ConversionService.ToSession", s.conv.MembershipToSession)
}

func (s *ConversionService) convert(ctx context.Context, paymentID, spanName string, fn func(models.Payment) (billing.Conversion, error)) (ConversionResult, error) {
	ctx, span := obs.Tracer().Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID))

	if paymentID == "" {
		return ConversionResult{}, apperr.Validation("payment id is required")
	}

	release, err := s.locker.Acquire(ctx, paymentLockKey(paymentID), defaultLockTTL)
	if err != nil {
		return ConversionResult{}, err
	}
	defer release()

	current, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return ConversionResult{}, err
	}
	conv, err := fn(current)
	if err != nil {
		return ConversionResult{}, err
	}

	releaseMember, err := s.locker.Acquire(ctx, memberLockKey(current.MemberID), defaultLockTTL)
	if err != nil {
		return ConversionResult{}, err
	}
	defer releaseMember()

	if conv.Payment.Type == models.PaymentTypeMonthly {
		other, found, err := s.coveringPayment(ctx, current, conv.TargetYear, conv.TargetMonth)
		if err != nil {
			return ConversionResult{}, err
		}
		if found {
			return ConversionResult{}, apperr.Conflict("member %s already pays the %s %d membership with payment %s",
				current.MemberID, time.Month(conv.TargetMonth), conv.TargetYear, other.ID)
		}
	}

	updated, err := s.store.UpdatePayment(ctx, conv.Payment)
	if err != nil {
		return ConversionResult{}, err
	}

	result := ConversionResult{
		Payment:        updated,
		PreviousAmount: conv.PreviousAmount,
		PreviousType:   conv.PreviousType,
		TargetYear:     conv.TargetYear,
		TargetMonth:    conv.TargetMonth,
		WeeksInMonth:   conv.WeeksInMonth,
	}

	// membership tracking never fails the conversion
	if updated.Type == models.PaymentTypeMonthly {
		created, err := ensureMembership(ctx, s.store, updated.MemberID, conv.TargetYear, conv.TargetMonth, conv.WeeksInMonth, updated.SessionFee)
		if err != nil {
			s.log.Warn("track membership after conversion", zap.String("payment_id", paymentID), zap.Error(err))
		}
		result.MembershipCreated = created
		result.Message = fmt.Sprintf("Converted to membership: %d (was %d)", updated.Amount, conv.PreviousAmount)
	} else {
		removed, err := s.releaseBilledMonth(ctx, updated, conv.TargetYear, conv.TargetMonth)
		if err != nil {
			s.log.Warn("release membership after conversion", zap.String("payment_id", paymentID), zap.Error(err))
		}
		result.MembershipRemoved = removed
		result.Message = fmt.Sprintf("Converted to session billing: %d (was %d)", updated.Amount, conv.PreviousAmount)
	}

	event := paymentConvertedEvent{
		PaymentID:      updated.ID,
		MemberID:       updated.MemberID,
		From:           conv.PreviousType,
		To:             updated.Type,
		PreviousAmount: conv.PreviousAmount,
		Amount:         updated.Amount,
	}
	if err := s.pub.PublishJSON(ctx, mq.KeyPaymentConverted, event); err != nil {
		s.log.Warn("publish conversion", zap.String("payment_id", paymentID), zap.Error(err))
	}

	s.log.Info("payment converted",
		zap.String("payment_id", updated.ID),
		zap.String("from", string(conv.PreviousType)),
		zap.String("to", string(updated.Type)),
		zap.Int64("amount", updated.Amount),
	)
	return result, nil
}

// releaseBilledMonth drops the pending membership row of the month p was
// billed for, unless another monthly payment of the member still covers it.
func (s *ConversionService) releaseBilledMonth(ctx context.Context, p models.Payment, year, month int) (bool, error) {
	other, found, err := s.coveringPayment(ctx, p, year, month)
	if err != nil {
		return false, err
	}
	if found {
		s.log.Debug("membership month still covered",
			zap.String("payment_id", p.ID),
			zap.String("covered_by", other.ID),
			zap.Int("year", year),
			zap.Int("month", month),
		)
		return false, nil
	}
	return releaseMembership(ctx, s.store, p.MemberID, year, month)
}

// coveringPayment finds a monthly payment of p's member, other than p, that is
// not cancelled and bills the given month.
func (s *ConversionService) coveringPayment(ctx context.Context, p models.Payment, year, month int) (models.Payment, bool, error) {
	monthly, err := s.store.ListPayments(ctx, store.PaymentFilter{MemberID: p.MemberID, Type: models.PaymentTypeMonthly})
	if err != nil {
		return models.Payment{}, false, fmt.Errorf("list monthly payments of %s: %w", p.MemberID, err)
	}
	other, found := lo.Find(monthly, func(o models.Payment) bool {
		if o.ID == p.ID || o.Status == models.PaymentStatusCancelled {
			return false
		}
		y, m := s.conv.BilledPeriod(o)
		return y == year && int(m) == month
	})
	return other, found, nil
}
