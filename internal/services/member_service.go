package services

import (
	"context"
	"strings"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
	"badminton_club/internal/store"
)

type CreateMemberInput struct {
	Name       string
	Phone      string
	Email      string
	MemberType models.MemberType
}

type MemberService struct {
	store store.MemberStore
}

func NewMemberService(st store.MemberStore) *MemberService {
	return &MemberService{store: st}
}

func (s *MemberService) Create(ctx context.Context, in CreateMemberInput) (models.Member, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Member{}, apperr.Validation("name is required")
	}
	memberType := in.MemberType
	switch memberType {
	case "":
		memberType = models.MemberTypeMember
	case models.MemberTypeAdmin, models.MemberTypeMember:
	default:
		return models.Member{}, apperr.Validation("invalid member_type %q", in.MemberType)
	}

	m := models.Member{
		Name:       name,
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		MemberType: memberType,
		IsActive:   true,
	}
	if err := s.store.CreateMember(ctx, &m); err != nil {
		return models.Member{}, err
	}
	return m, nil
}

func (s *MemberService) Get(ctx context.Context, id string) (models.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *MemberService) List(ctx context.Context, activeOnly bool) ([]models.Member, error) {
	return s.store.ListMembers(ctx, activeOnly)
}
