package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

const pgUniqueViolation = "23505"

// GormStore implements Store on top of Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the handle for callers that need raw queries, like the task runner.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

func (s *GormStore) CreatePayments(ctx context.Context, payments []models.Payment) ([]models.Payment, error) {
	if len(payments) == 0 {
		return payments, nil
	}
	out := append([]models.Payment(nil), payments...)
	if err := s.db.WithContext(ctx).Create(&out).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("payment already exists")
		}
		return nil, fmt.Errorf("create payments: %w", err)
	}
	return out, nil
}

func (s *GormStore) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return models.Payment{}, notFound(err, "payment", id)
	}
	return p, nil
}

func (s *GormStore) UpdatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	expected := p.Version
	p.Version = expected + 1

	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Select("type", "amount", "status", "due_date", "paid_date", "paid_amount",
			"payment_method", "shuttlecock_fee", "attendance_fee", "notes", "billed_year", "billed_month",
			"version", "updated_at").
		Updates(&p)
	if res.Error != nil {
		return models.Payment{}, fmt.Errorf("update payment %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPayment(ctx, p.ID); err != nil {
			return models.Payment{}, err
		}
		return models.Payment{}, apperr.Conflict("payment %s was modified concurrently, reload and retry", p.ID)
	}
	return s.GetPayment(ctx, p.ID)
}

func (s *GormStore) DeletePayment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Payment{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete payment %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("payment %s not found", id)
	}
	return nil
}

func (s *GormStore) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if f.MemberID != "" {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if len(f.MemberIDs) > 0 {
		q = q.Where("member_id IN ?", f.MemberIDs)
	}
	if f.MatchID != "" {
		q = q.Where("match_id = ?", f.MatchID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", f.DueFrom.Format("2006-01-02"))
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", f.DueTo.Format("2006-01-02"))
	}

	var payments []models.Payment
	if err := q.Order("member_id, due_date, created_at").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (s *GormStore) ListPaymentMemberIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Distinct("member_id").
		Order("member_id").
		Pluck("member_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list payment members: %w", err)
	}
	return ids, nil
}

func (s *GormStore) ListMembershipPayments(ctx context.Context, f MembershipFilter) ([]models.MembershipPayment, error) {
	q := s.db.WithContext(ctx).Model(&models.MembershipPayment{})
	if len(f.MemberIDs) > 0 {
		q = q.Where("member_id IN ?", f.MemberIDs)
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Month != 0 {
		q = q.Where("month = ?", f.Month)
	}

	var rows []models.MembershipPayment
	if err := q.Order("year, month").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list membership payments: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CreateMembershipPayment(ctx context.Context, mp *models.MembershipPayment) error {
	if err := s.db.WithContext(ctx).Create(mp).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("membership for %d-%02d already exists for member %s", mp.Year, mp.Month, mp.MemberID)
		}
		return fmt.Errorf("create membership payment: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteMembershipPayment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.MembershipPayment{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete membership payment %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("membership payment %s not found", id)
	}
	return nil
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).
		Preload("Attendances", func(db *gorm.DB) *gorm.DB {
			return db.Order("match_attendances.created_at, match_attendances.id")
		}).
		First(&m, "id = ?", id).Error
	if err != nil {
		return models.Match{}, notFound(err, "match", id)
	}
	return m, nil
}

func (s *GormStore) CreateMatch(ctx context.Context, m *models.Match) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *GormStore) CreateMember(ctx context.Context, m *models.Member) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("member with email %s already exists", m.Email)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *GormStore) GetMember(ctx context.Context, id string) (models.Member, error) {
	var m models.Member
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return models.Member{}, notFound(err, "member", id)
	}
	return m, nil
}

func (s *GormStore) ListMembers(ctx context.Context, activeOnly bool) ([]models.Member, error) {
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var members []models.Member
	if err := q.Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *GormStore) ActiveGatewaySession(ctx context.Context, paymentID string) (*models.GatewaySession, error) {
	var session models.GatewaySession
	err := s.db.WithContext(ctx).
		Where("payment_id = ? AND is_active = ?", paymentID, true).
		Order("created_at desc").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load gateway session: %w", err)
	}
	return &session, nil
}

func (s *GormStore) GetGatewaySessionByOrderID(ctx context.Context, orderID string) (models.GatewaySession, error) {
	var session models.GatewaySession
	if err := s.db.WithContext(ctx).First(&session, "order_id = ?", orderID).Error; err != nil {
		return models.GatewaySession{}, notFound(err, "gateway session", orderID)
	}
	return session, nil
}

func (s *GormStore) SaveGatewaySession(ctx context.Context, session *models.GatewaySession) error {
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("save gateway session: %w", err)
	}
	return nil
}

func (s *GormStore) CreateCallbackHistory(ctx context.Context, h *models.PaymentCallbackHistory) error {
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("store callback history: %w", err)
	}
	return nil
}
