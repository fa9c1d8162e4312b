package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/audit"
	"github.com/prepwise/partner-server-go/internal/config"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
)

const (
	minPracticeFrequency = 1
	maxPracticeFrequency = 7
)

type EnrollInput struct {
	UserID            string
	ExamID            string
	PracticeFrequency string
	ExamDate          time.Time
}

// EnrollmentService keeps at most one enrollment per user and exam, and
// rewards a user's first ever enrollment.
type EnrollmentService struct {
	enrollments   repository.EnrollmentRepository
	exams         repository.ExamRepository
	users         repository.UserRepository
	notifications *NotificationService
	now           func() time.Time
}

func NewEnrollmentService(
	enrollments repository.EnrollmentRepository,
	exams repository.ExamRepository,
	users repository.UserRepository,
	notifications *NotificationService,
) *EnrollmentService {
	return &EnrollmentService{
		enrollments:   enrollments,
		exams:         exams,
		users:         users,
		notifications: notifications,
		now:           time.Now,
	}
}

// GetUserExamEnrollment returns nil when the user is not enrolled.
func (s *EnrollmentService) GetUserExamEnrollment(ctx context.Context, userID, examID string) (*model.ExamEnrollment, error) {
	e, err := s.enrollments.FindByUserAndExam(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return e, nil
}

// Enroll creates an enrollment, failing with ALREADY_EXISTS when one exists.
func (s *EnrollmentService) Enroll(ctx context.Context, in EnrollInput) (*model.ExamEnrollment, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	exam, err := s.exams.FindByID(ctx, in.ExamID)
	if err != nil {
		return nil, fmt.Errorf("find exam: %w", err)
	}
	if exam == nil {
		return nil, apperrors.NotFound("Exam")
	}

	existing, err := s.GetUserExamEnrollment(ctx, in.UserID, in.ExamID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Enrollment")
	}

	e, err := s.create(ctx, in)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Enrollment")
		}
		return nil, err
	}
	return e, nil
}

// EnrollIfAbsent enrolls unless an enrollment already exists. A concurrent
// insert losing on the unique index counts as already enrolled.
func (s *EnrollmentService) EnrollIfAbsent(ctx context.Context, in EnrollInput) (bool, error) {
	in, err := s.normalize(in)
	if err != nil {
		return false, err
	}

	existing, err := s.GetUserExamEnrollment(ctx, in.UserID, in.ExamID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if _, err := s.create(ctx, in); err != nil {
		if repository.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID string) ([]model.ExamEnrollment, error) {
	items, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	if items == nil {
		items = []model.ExamEnrollment{}
	}
	return items, nil
}

func (s *EnrollmentService) normalize(in EnrollInput) (EnrollInput, error) {
	if in.UserID == "" {
		return in, apperrors.MissingRequired("user_id")
	}
	if in.ExamID == "" {
		return in, apperrors.MissingRequired("exam_id")
	}
	if in.PracticeFrequency == "" {
		in.PracticeFrequency = config.DefaultPracticeFrequency
	}
	freq, err := strconv.Atoi(in.PracticeFrequency)
	if err != nil || freq < minPracticeFrequency || freq > maxPracticeFrequency {
		return in, apperrors.InvalidInput("practice_frequency",
			fmt.Sprintf("must be a number between %d and %d", minPracticeFrequency, maxPracticeFrequency))
	}
	if in.ExamDate.IsZero() {
		in.ExamDate = examDateFrom(s.now(), config.DefaultExamDateOffsetMonths)
	}
	return in, nil
}

func (s *EnrollmentService) create(ctx context.Context, in EnrollInput) (*model.ExamEnrollment, error) {
	e, err := s.enrollments.Create(ctx, model.CreateEnrollmentParams{
		UserID:            in.UserID,
		ExamID:            in.ExamID,
		PracticeFrequency: in.PracticeFrequency,
		ExamDate:          in.ExamDate,
	})
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	log.Info().
		Str("userId", in.UserID).
		Str("examId", in.ExamID).
		Time("examDate", in.ExamDate).
		Msg("user enrolled in exam")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventEnrollment,
		ActorID: in.UserID,
		Details: map[string]any{"examId": in.ExamID},
	})

	s.rewardFirstEnrollment(ctx, in.UserID)
	return e, nil
}

// rewardFirstEnrollment grants bonus practice time once per user. The flag
// flip and credit happen in one conditional update so the bonus cannot be
// granted twice.
func (s *EnrollmentService) rewardFirstEnrollment(ctx context.Context, userID string) {
	user, err := s.users.GrantFirstEnrollmentBonus(ctx, userID, config.FirstEnrollmentBonusSeconds)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to grant first enrollment bonus")
		return
	}
	if user == nil {
		return
	}

	log.Info().
		Str("userId", userID).
		Int("bonusSeconds", config.FirstEnrollmentBonusSeconds).
		Msg("first enrollment bonus granted")

	if s.notifications == nil {
		return
	}
	_, err = s.notifications.Notify(ctx, model.CreateNotificationParams{
		UserID: userID,
		Type:   model.NotificationFirstEnrollmentBonus,
		Title:  "Welcome aboard!",
		Body: fmt.Sprintf("You enrolled in your first exam and earned %d free practice minutes.",
			config.FirstEnrollmentBonusSeconds/60),
	})
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to create first enrollment notification")
	}
}
