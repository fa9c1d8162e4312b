package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepwise/partner-server-go/internal/middleware"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/service"
)

type ExamCatalog interface {
	ListExams(ctx context.Context) ([]model.Exam, error)
}

type EnrollmentRegistry interface {
	Enroll(ctx context.Context, in service.EnrollInput) (*model.ExamEnrollment, error)
	ListEnrollments(ctx context.Context, userID string) ([]model.ExamEnrollment, error)
}

type ExamHandler struct {
	catalog     ExamCatalog
	enrollments EnrollmentRegistry
}

func NewExamHandler(catalog ExamCatalog, enrollments EnrollmentRegistry) *ExamHandler {
	return &ExamHandler{
		catalog:     catalog,
		enrollments: enrollments,
	}
}

// Routes lists exams for any signed-in account; enrollment is candidate-only.
func (h *ExamHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccountType(model.AccountTypeCandidate))
		r.Post("/{examID}/enroll", h.Enroll)
		r.Get("/enrollments", h.ListEnrollments)
	})

	return r
}

// GET /v1/exams
func (h *ExamHandler) List(w http.ResponseWriter, r *http.Request) {
	exams, err := h.catalog.ListExams(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Exams retrieved successfully", exams)
}

// POST /v1/exams/{examID}/enroll
func (h *ExamHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		PracticeFrequency string `json:"practice_frequency"`
		ExamDate          string `json:"exam_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	examDate, err := parseDate("exam_date", req.ExamDate)
	if err != nil {
		writeError(w, err)
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), service.EnrollInput{
		UserID:            p.UserID,
		ExamID:            chi.URLParam(r, "examID"),
		PracticeFrequency: req.PracticeFrequency,
		ExamDate:          examDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Enrolled successfully", enrollment)
}

// GET /v1/exams/enrollments
func (h *ExamHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	items, err := h.enrollments.ListEnrollments(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Enrollments retrieved successfully", items)
}
