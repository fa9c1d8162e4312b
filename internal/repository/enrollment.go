package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type EnrollmentRepository interface {
	FindByUserAndExam(ctx context.Context, userID, examID string) (*model.ExamEnrollment, error)
	// Create fails with a unique violation when the user is already enrolled in the exam.
	Create(ctx context.Context, params model.CreateEnrollmentParams) (*model.ExamEnrollment, error)
	ListByUser(ctx context.Context, userID string) ([]model.ExamEnrollment, error)
}

type enrollmentRepo struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) FindByUserAndExam(ctx context.Context, userID, examID string) (*model.ExamEnrollment, error) {
	var enrollment model.ExamEnrollment
	err := r.db.GetContext(ctx, &enrollment, `
		SELECT * FROM exam_enrollments
		WHERE user_id = $1 AND exam_id = $2
	`, userID, examID)
	return HandleNotFound(&enrollment, err)
}

func (r *enrollmentRepo) Create(ctx context.Context, params model.CreateEnrollmentParams) (*model.ExamEnrollment, error) {
	var enrollment model.ExamEnrollment
	err := r.db.GetContext(ctx, &enrollment, `
		INSERT INTO exam_enrollments (user_id, exam_id, practice_frequency, exam_date)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.UserID, params.ExamID, params.PracticeFrequency, params.ExamDate)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) ListByUser(ctx context.Context, userID string) ([]model.ExamEnrollment, error) {
	var enrollments []model.ExamEnrollment
	err := r.db.SelectContext(ctx, &enrollments, `
		SELECT * FROM exam_enrollments
		WHERE user_id = $1
		ORDER BY joined_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}
