package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/services"
)

// MemberHandler serves member records, membership opt-in and per-member
// duplicate cleanup.
type MemberHandler struct {
	members     *services.MemberService
	memberships *services.MembershipService
	reconcile   *services.ReconcileService
	now         func() time.Time
}

func NewMemberHandler(members *services.MemberService, memberships *services.MembershipService, reconcile *services.ReconcileService) *MemberHandler {
	return &MemberHandler{members: members, memberships: memberships, reconcile: reconcile, now: time.Now}
}

type createMemberRequest struct {
	Name       string            `json:"name" validate:"required"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email" validate:"omitempty,email"`
	MemberType models.MemberType `json:"member_type" validate:"omitempty,oneof=Admin Member"`
}

type optInRequest struct {
	Year  int `json:"year" validate:"required"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// ListMembers returns members, active ones only unless ?all=true.
// GET /api/members
func (h *MemberHandler) ListMembers(c echo.Context) error {
	activeOnly := !parseBoolParam(c.QueryParam("all"), false)
	members, err := h.members.List(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return ok(c, members)
}

// CreateMember registers a member.
// POST /api/members
func (h *MemberHandler) CreateMember(c echo.Context) error {
	var req createMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.members.Create(c.Request().Context(), services.CreateMemberInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		MemberType: req.MemberType,
	})
	if err != nil {
		return err
	}
	return created(c, member)
}

// GetMember GET /api/members/:id
func (h *MemberHandler) GetMember(c echo.Context) error {
	member, err := h.members.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, member)
}

// MembershipStatus reports whether the member holds a membership for the
// month of ?date= (today when omitted).
// GET /api/members/:id/membership-status
func (h *MemberHandler) MembershipStatus(c echo.Context) error {
	date := billing.DateOf(h.now())
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := parseDateParam("date", raw)
		if err != nil {
			return err
		}
		date = parsed
	}

	status, err := h.memberships.Status(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return err
	}
	return ok(c, status)
}

// OptIn records a pending monthly membership.
// POST /api/members/:id/memberships
func (h *MemberHandler) OptIn(c echo.Context) error {
	var req optInRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mp, err := h.memberships.OptIn(c.Request().Context(), c.Param("id"), req.Year, req.Month)
	if err != nil {
		return err
	}
	return created(c, mp)
}

// CleanupDuplicates resolves one member's duplicate payments. Dry run unless
// ?dry_run=false.
// POST /api/members/:id/duplicates/cleanup
func (h *MemberHandler) CleanupDuplicates(c echo.Context) error {
	dryRun := parseBoolParam(c.QueryParam("dry_run"), true)
	report, err := h.reconcile.DetectAndResolve(c.Request().Context(), c.Param("id"), dryRun)
	if err != nil {
		return err
	}
	return ok(c, report)
}
