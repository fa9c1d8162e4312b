package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
)

type PartnerService struct {
	partners repository.PartnerRepository
	exams    repository.ExamRepository
}

func NewPartnerService(partners repository.PartnerRepository, exams repository.ExamRepository) *PartnerService {
	return &PartnerService{partners: partners, exams: exams}
}

// Profile returns the partner's settings. Partners without a stored profile
// get an empty one.
func (s *PartnerService) Profile(ctx context.Context, partnerID string) (*model.PartnerProfile, error) {
	profile, err := s.partners.FindProfile(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("find partner profile: %w", err)
	}
	if profile == nil {
		profile = &model.PartnerProfile{UserID: partnerID, ExamTypes: []string{}}
	}
	return profile, nil
}

// UpdateExamTypes replaces the exams new candidates are auto-enrolled in.
func (s *PartnerService) UpdateExamTypes(ctx context.Context, partnerID string, examIDs []string) (*model.PartnerProfile, error) {
	ids := make([]string, 0, len(examIDs))
	seen := make(map[string]bool, len(examIDs))
	for _, id := range examIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		exams, err := s.exams.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("find exams: %w", err)
		}
		known := make(map[string]bool, len(exams))
		for _, e := range exams {
			known[e.ID] = true
		}
		var unknown []string
		for _, id := range ids {
			if !known[id] {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 {
			return nil, apperrors.ValidationError(fmt.Sprintf("Unknown exam type(s): %s", strings.Join(unknown, ", "))).
				WithDetails(map[string]any{"unknownExamTypes": unknown})
		}
	}

	profile, err := s.partners.UpdateExamTypes(ctx, partnerID, ids)
	if err != nil {
		return nil, fmt.Errorf("update exam types: %w", err)
	}
	return profile, nil
}

func (s *PartnerService) ListExams(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.exams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}
