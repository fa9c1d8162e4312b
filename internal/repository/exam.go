package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/prepwise/partner-server-go/internal/model"
)

type ExamRepository interface {
	FindByID(ctx context.Context, id string) (*model.Exam, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Exam, error)
	List(ctx context.Context) ([]model.Exam, error)
}

type examRepo struct {
	db *sqlx.DB
}

func NewExamRepository(db *sqlx.DB) ExamRepository {
	return &examRepo{db: db}
}

func (r *examRepo) FindByID(ctx context.Context, id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.db.GetContext(ctx, &exam, `SELECT * FROM exams WHERE id = $1`, id)
	return HandleNotFound(&exam, err)
}

func (r *examRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.db.SelectContext(ctx, &exams, `
		SELECT * FROM exams WHERE id = ANY($1)
	`, pq.StringArray(ids))
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepo) List(ctx context.Context) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.db.SelectContext(ctx, &exams, `SELECT * FROM exams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return exams, nil
}
