// Package testutil holds in-memory fakes shared by service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
	"badminton_club/internal/store"
)

// Calls counts mutating store operations.
type Calls struct {
	Creates int
	Updates int
	Deletes int
}

// MemoryStore is a map-backed store.Store. FailDelete and FailList inject
// errors for specific IDs to exercise partial-failure paths.
type MemoryStore struct {
	mu sync.Mutex

	payments    map[string]models.Payment
	memberships map[string]models.MembershipPayment
	matches     map[string]models.Match
	members     map[string]models.Member
	sessions    map[uint]models.GatewaySession
	callbacks   []models.PaymentCallbackHistory
	nextID      uint

	Calls      Calls
	FailDelete map[string]error
	FailList   map[string]error
	Now        func() time.Time
}

var _ store.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:    map[string]models.Payment{},
		memberships: map[string]models.MembershipPayment{},
		matches:     map[string]models.Match{},
		members:     map[string]models.Member{},
		sessions:    map[uint]models.GatewaySession{},
		FailDelete:  map[string]error{},
		FailList:    map[string]error{},
		Now:         time.Now,
	}
}

// SeedPayments inserts records as-is without counting them as creates.
func (s *MemoryStore) SeedPayments(payments ...models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payments {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Version == 0 {
			p.Version = 1
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.Now()
		}
		s.payments[p.ID] = p
	}
}

func (s *MemoryStore) SeedMemberships(rows ...models.MembershipPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mp := range rows {
		if mp.ID == "" {
			mp.ID = uuid.NewString()
		}
		s.memberships[mp.ID] = mp
	}
}

func (s *MemoryStore) SeedMembers(members ...models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		s.members[m.ID] = m
	}
}

func (s *MemoryStore) SeedMatch(m models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

// Payments returns a snapshot of every stored payment ordered by ID.
func (s *MemoryStore) Payments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Values(s.payments)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Memberships returns a snapshot of every membership row.
func (s *MemoryStore) Memberships() []models.MembershipPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Values(s.memberships)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) CallbackHistory() []models.PaymentCallbackHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentCallbackHistory(nil), s.callbacks...)
}

func (s *MemoryStore) CreatePayments(_ context.Context, payments []models.Payment) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, ok := s.payments[p.ID]; ok {
			return nil, apperr.Conflict("payment already exists")
		}
		if p.Version == 0 {
			p.Version = 1
		}
		p.CreatedAt = s.Now()
		p.UpdatedAt = p.CreatedAt
		s.payments[p.ID] = p
		s.Calls.Creates++
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return models.Payment{}, apperr.NotFound("payment %s not found", id)
	}
	return p, nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, p models.Payment) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.payments[p.ID]
	if !ok {
		return models.Payment{}, apperr.NotFound("payment %s not found", p.ID)
	}
	if current.Version != p.Version {
		return models.Payment{}, apperr.Conflict("payment %s was modified concurrently, reload and retry", p.ID)
	}
	p.Version++
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.Now()
	s.payments[p.ID] = p
	s.Calls.Updates++
	return p, nil
}

func (s *MemoryStore) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailDelete[id]; ok {
		return err
	}
	if _, ok := s.payments[id]; !ok {
		return apperr.NotFound("payment %s not found", id)
	}
	delete(s.payments, id)
	s.Calls.Deletes++
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context, f store.PaymentFilter) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailList[f.MemberID]; ok && f.MemberID != "" {
		return nil, err
	}

	out := lo.Filter(lo.Values(s.payments), func(p models.Payment, _ int) bool {
		switch {
		case f.MemberID != "" && p.MemberID != f.MemberID:
			return false
		case len(f.MemberIDs) > 0 && !lo.Contains(f.MemberIDs, p.MemberID):
			return false
		case f.MatchID != "" && (p.MatchID == nil || *p.MatchID != f.MatchID):
			return false
		case f.Type != "" && p.Type != f.Type:
			return false
		case len(f.Statuses) > 0 && !lo.Contains(f.Statuses, p.Status):
			return false
		case f.DueFrom != nil && dateOf(p.DueDate).Before(dateOf(*f.DueFrom)):
			return false
		case f.DueTo != nil && dateOf(p.DueDate).After(dateOf(*f.DueTo)):
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MemberID != b.MemberID {
			return a.MemberID < b.MemberID
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *MemoryStore) ListPaymentMemberIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Uniq(lo.MapToSlice(s.payments, func(_ string, p models.Payment) string { return p.MemberID }))
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListMembershipPayments(_ context.Context, f store.MembershipFilter) ([]models.MembershipPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.memberships), func(mp models.MembershipPayment, _ int) bool {
		if len(f.MemberIDs) > 0 && !lo.Contains(f.MemberIDs, mp.MemberID) {
			return false
		}
		if f.Year != 0 && mp.Year != f.Year {
			return false
		}
		return f.Month == 0 || mp.Month == f.Month
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out, nil
}

func (s *MemoryStore) CreateMembershipPayment(_ context.Context, mp *models.MembershipPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.MemberID == mp.MemberID && existing.Year == mp.Year && existing.Month == mp.Month {
			return apperr.Conflict("membership for %d-%02d already exists for member %s", mp.Year, mp.Month, mp.MemberID)
		}
	}
	if mp.ID == "" {
		mp.ID = uuid.NewString()
	}
	mp.CreatedAt = s.Now()
	s.memberships[mp.ID] = *mp
	s.Calls.Creates++
	return nil
}

func (s *MemoryStore) DeleteMembershipPayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[id]; !ok {
		return apperr.NotFound("membership payment %s not found", id)
	}
	delete(s.memberships, id)
	s.Calls.Deletes++
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, apperr.NotFound("match %s not found", id)
	}
	return m, nil
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.matches[m.ID] = *m
	s.Calls.Creates++
	return nil
}

func (s *MemoryStore) CreateMember(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members {
		if m.Email != "" && existing.Email == m.Email {
			return apperr.Conflict("member with email %s already exists", m.Email)
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = s.Now()
	s.members[m.ID] = *m
	s.Calls.Creates++
	return nil
}

func (s *MemoryStore) GetMember(_ context.Context, id string) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return models.Member{}, apperr.NotFound("member %s not found", id)
	}
	return m, nil
}

func (s *MemoryStore) ListMembers(_ context.Context, activeOnly bool) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.members), func(m models.Member, _ int) bool {
		return !activeOnly || m.IsActive
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ActiveGatewaySession(_ context.Context, paymentID string) (*models.GatewaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.GatewaySession
	for _, gs := range s.sessions {
		if gs.PaymentID != paymentID || !gs.IsActive {
			continue
		}
		if found == nil || gs.ID > found.ID {
			gs := gs
			found = &gs
		}
	}
	return found, nil
}

func (s *MemoryStore) GetGatewaySessionByOrderID(_ context.Context, orderID string) (models.GatewaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, gs := range s.sessions {
		if gs.OrderID == orderID {
			return gs, nil
		}
	}
	return models.GatewaySession{}, apperr.NotFound("gateway session %s not found", orderID)
}

func (s *MemoryStore) SaveGatewaySession(_ context.Context, gs *models.GatewaySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gs.ID == 0 {
		s.nextID++
		gs.ID = s.nextID
		gs.CreatedAt = s.Now()
	}
	gs.UpdatedAt = s.Now()
	s.sessions[gs.ID] = *gs
	return nil
}

func (s *MemoryStore) CreateCallbackHistory(_ context.Context, h *models.PaymentCallbackHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = uint(len(s.callbacks) + 1)
	h.CreatedAt = s.Now()
	s.callbacks = append(s.callbacks, *h)
	return nil
}

// ResetCalls zeroes the counters, typically after seeding through the API.
func (s *MemoryStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = Calls{}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MustDate parses a YYYY-MM-DD literal, panicking on bad input.
func MustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("bad date %q: %v", s, err))
	}
	return d
}
