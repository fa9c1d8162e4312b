package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/service"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory.
const multipartMemory = 4 << 20

type CandidateWorkflow interface {
	CreateCandidate(ctx context.Context, partnerID string, in service.CreateCandidateInput) (*service.CreateCandidateResult, error)
	UploadCandidatesCSV(ctx context.Context, partnerID string, in service.UploadCSVInput) (*service.CSVUploadResult, error)
	CreateBatch(ctx context.Context, partnerID, name string) (*model.CandidateBatch, error)
	ListBatches(ctx context.Context, partnerID string) ([]model.CandidateBatch, error)
	ListCandidates(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error)
	MarkPaid(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error)
	AcceptInvite(ctx context.Context, candidateID string, in service.AcceptInviteInput) (*model.PartnerCandidate, error)
	AssignToBatch(ctx context.Context, partnerID, batchID string, candidateIDs []string) (*service.AssignResult, error)
}

type CandidateHandler struct {
	candidates     CandidateWorkflow
	maxUploadBytes int64
}

func NewCandidateHandler(candidates CandidateWorkflow, maxUploadBytes int64) *CandidateHandler {
	return &CandidateHandler{
		candidates:     candidates,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes are the partner-only candidate endpoints. AcceptInvite is mounted
// separately because it is public.
func (h *CandidateHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/upload-csv", h.UploadCSV)
	r.Post("/batches", h.CreateBatch)
	r.Get("/batches", h.ListBatches)
	r.Post("/batches/{batchID}/assign", h.AssignToBatch)
	r.Patch("/{candidateID}/mark-paid", h.MarkPaid)

	return r
}

// POST /v1/candidates
func (h *CandidateHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		BatchID   *string `json:"batch_id"`
		Firstname string  `json:"firstname"`
		Lastname  string  `json:"lastname"`
		Email     string  `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.candidates.CreateCandidate(r.Context(), p.UserID, service.CreateCandidateInput{
		BatchID:   req.BatchID,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccessWithWarnings(w, http.StatusCreated, "Candidate created successfully", result.Candidate, result.Warnings)
}

// GET /v1/candidates?batch_id=&limit=&offset=
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	page := ParsePagination(r)
	filter := model.ListCandidatesFilter{
		PartnerID: p.UserID,
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if batchID := r.URL.Query().Get("batch_id"); batchID != "" {
		filter.BatchID = &batchID
	}

	candidates, err := h.candidates.ListCandidates(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, "Candidates retrieved successfully", candidates, page, len(candidates))
}

// POST /v1/candidates/upload-csv (multipart: file, batch_id)
func (h *CandidateHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			writeError(w, apperrors.BadRequest("Upload too large").WithStatus(http.StatusRequestEntityTooLarge))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperrors.BadRequest("Upload too large").WithStatus(http.StatusRequestEntityTooLarge))
			return
		}
		writeError(w, apperrors.BadRequest("Expected multipart/form-data with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.MissingRequired("file"))
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		writeError(w, apperrors.InvalidInput("file", "must be a .csv file"))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperrors.BadRequest("Failed to read uploaded file"))
		return
	}

	in := service.UploadCSVInput{
		Filename: header.Filename,
		Content:  content,
	}
	if batchID := strings.TrimSpace(r.FormValue("batch_id")); batchID != "" {
		in.BatchID = &batchID
	}

	result, err := h.candidates.UploadCandidatesCSV(r.Context(), p.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "CSV processed", result)
}

// POST /v1/candidates/batches
func (h *CandidateHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		BatchName string `json:"batch_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	batch, err := h.candidates.CreateBatch(r.Context(), p.UserID, req.BatchName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Batch created successfully", batch)
}

// GET /v1/candidates/batches
func (h *CandidateHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	batches, err := h.candidates.ListBatches(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Batches retrieved successfully", batches)
}

// POST /v1/candidates/batches/{batchID}/assign
func (h *CandidateHandler) AssignToBatch(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		CandidateIDs []string `json:"candidate_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.candidates.AssignToBatch(r.Context(), p.UserID, chi.URLParam(r, "batchID"), req.CandidateIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Batch assignment processed", result)
}

// PATCH /v1/candidates/{candidateID}/mark-paid
func (h *CandidateHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	link, err := h.candidates.MarkPaid(r.Context(), p.UserID, chi.URLParam(r, "candidateID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Candidate marked as paid", link)
}

// POST /v1/candidates/{candidateID}/accept-invite
// The token and partner id may come from the JSON body or the invitation link's query string.
func (h *CandidateHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartnerID string  `json:"partner_id"`
		Token     string  `json:"token"`
		Password  *string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	if req.PartnerID == "" {
		req.PartnerID = q.Get("partner_id")
	}
	if req.Token == "" {
		req.Token = q.Get("token")
	}

	link, err := h.candidates.AcceptInvite(r.Context(), chi.URLParam(r, "candidateID"), service.AcceptInviteInput{
		PartnerID: req.PartnerID,
		Token:     req.Token,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Invitation accepted", link)
}
