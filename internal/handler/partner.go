package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepwise/partner-server-go/internal/model"
)

type PartnerSettings interface {
	Profile(ctx context.Context, partnerID string) (*model.PartnerProfile, error)
	UpdateExamTypes(ctx context.Context, partnerID string, examIDs []string) (*model.PartnerProfile, error)
}

type PartnerHandler struct {
	partners PartnerSettings
}

func NewPartnerHandler(partners PartnerSettings) *PartnerHandler {
	return &PartnerHandler{partners: partners}
}

func (h *PartnerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Put("/me/exam-types", h.UpdateExamTypes)

	return r
}

// GET /v1/partners/me
func (h *PartnerHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	profile, err := h.partners.Profile(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Partner profile retrieved successfully", profile)
}

// PUT /v1/partners/me/exam-types
func (h *PartnerHandler) UpdateExamTypes(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		ExamTypes []string `json:"exam_types"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.partners.UpdateExamTypes(r.Context(), p.UserID, req.ExamTypes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Exam types updated", profile)
}
