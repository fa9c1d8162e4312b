package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/service"
)

type SeatManager interface {
	CreateSeat(ctx context.Context, partnerID string, in service.CreateSeatInput) (*model.SeatSubscription, error)
	ListSeats(ctx context.Context, partnerID string) ([]model.SeatSubscription, error)
	Availability(ctx context.Context, partnerID, batchID string) (*service.SeatAvailability, error)
	Deactivate(ctx context.Context, partnerID, batchID string) error
}

type SeatHandler struct {
	seats SeatManager
}

func NewSeatHandler(seats SeatManager) *SeatHandler {
	return &SeatHandler{seats: seats}
}

func (h *SeatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{batchID}/availability", h.Availability)
	r.Post("/{batchID}/deactivate", h.Deactivate)

	return r
}

// POST /v1/seats
func (h *SeatHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	var req struct {
		BatchID        string `json:"batch_id"`
		SeatCount      int    `json:"seat_count"`
		SessionsPerDay int    `json:"sessions_per_day"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	seat, err := h.seats.CreateSeat(r.Context(), p.UserID, service.CreateSeatInput{
		BatchID:        req.BatchID,
		SeatCount:      req.SeatCount,
		SessionsPerDay: req.SessionsPerDay,
		StartDate:      start,
		EndDate:        end,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Seat subscription created", seat)
}

// GET /v1/seats
func (h *SeatHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	seats, err := h.seats.ListSeats(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Seat subscriptions retrieved successfully", seats)
}

// GET /v1/seats/{batchID}/availability
func (h *SeatHandler) Availability(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	view, err := h.seats.Availability(r.Context(), p.UserID, chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Seat availability retrieved successfully", view)
}

// POST /v1/seats/{batchID}/deactivate
func (h *SeatHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	batchID := chi.URLParam(r, "batchID")
	if err := h.seats.Deactivate(r.Context(), p.UserID, batchID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Seat subscription deactivated", map[string]string{"batch_id": batchID})
}
