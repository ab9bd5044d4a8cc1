package billing

import (
	"sort"

	"github.com/samber/lo"

	"badminton_club/internal/models"
)

// DuplicateKey identifies one billing obligation. A session fee and a tournament
// fee on the same day share member and due date but differ in type, so both are
// legitimate.
type DuplicateKey struct {
	MemberID string             `json:"member_id"`
	DueDate  string             `json:"due_date"`
	Type     models.PaymentType `json:"type"`
}

func keyOf(p models.Payment) DuplicateKey {
	return DuplicateKey{
		MemberID: p.MemberID,
		DueDate:  DateOf(p.DueDate).Format(DateLayout),
		Type:     p.Type,
	}
}

// DuplicateGroup is a set of records for the same obligation: Keep survives and
// Remove are the extras.
type DuplicateGroup struct {
	Key    DuplicateKey     `json:"key"`
	Keep   models.Payment   `json:"keep"`
	Remove []models.Payment `json:"remove"`
}

var statusRank = map[models.PaymentStatus]int{
	models.PaymentStatusPaid:    4,
	models.PaymentStatusPartial: 3,
	models.PaymentStatusOverdue: 2,
	models.PaymentStatusPending: 1,
}

func completeness(p models.Payment) int {
	score := 0
	if p.PaidDate != nil {
		score++
	}
	if p.PaymentMethod != "" {
		score++
	}
	if p.PaidAmount > 0 {
		score++
	}
	return score
}

// preferred reports whether a should be kept over b.
func preferred(a, b models.Payment) bool {
	if ra, rb := statusRank[a.Status], statusRank[b.Status]; ra != rb {
		return ra > rb
	}
	if ca, cb := completeness(a), completeness(b); ca != cb {
		return ca > cb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// FindDuplicates groups non-cancelled payments by (member, due date, type) and
// returns every group holding more than one record, ordered by key.
func FindDuplicates(payments []models.Payment) []DuplicateGroup {
	live := lo.Filter(payments, func(p models.Payment, _ int) bool {
		return p.Status != models.PaymentStatusCancelled
	})
	grouped := lo.GroupBy(live, keyOf)

	groups := make([]DuplicateGroup, 0)
	for key, records := range grouped {
		if len(records) < 2 {
			continue
		}
		sorted := append([]models.Payment(nil), records...)
		sort.SliceStable(sorted, func(i, j int) bool { return preferred(sorted[i], sorted[j]) })
		groups = append(groups, DuplicateGroup{Key: key, Keep: sorted[0], Remove: sorted[1:]})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a.MemberID != b.MemberID {
			return a.MemberID < b.MemberID
		}
		if a.DueDate != b.DueDate {
			return a.DueDate < b.DueDate
		}
		return a.Type < b.Type
	})
	return groups
}

// CountRemovals is the number of extra records across groups.
func CountRemovals(groups []DuplicateGroup) int {
	return lo.SumBy(groups, func(g DuplicateGroup) int { return len(g.Remove) })
}
