package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/audit"
	"github.com/prepwise/partner-server-go/internal/config"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/metrics"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/repository"
	"github.com/prepwise/partner-server-go/internal/util"
)

// ErrSeatsExhausted is returned by Reserve in atomic mode when the grant no
// longer has room for the requested count.
var ErrSeatsExhausted = errors.New("seats exhausted")

const maxSeatCount = 100000

type CreateSeatInput struct {
	BatchID        string
	SeatCount      int
	SessionsPerDay int
	StartDate      time.Time
	EndDate        time.Time
}

// SeatAvailability summarizes the active grant of a batch.
type SeatAvailability struct {
	BatchID       string  `json:"batch_id"`
	SeatID        *string `json:"seat_id"`
	SeatCount     int     `json:"seat_count"`
	SeatsAssigned int     `json:"seats_assigned"`
	Available     int     `json:"available"`
	IsActive      bool    `json:"is_active"`
}

// SeatLedger tracks how many seats of a purchased grant are in use.
type SeatLedger struct {
	seats   repository.SeatRepository
	batches repository.BatchRepository
	mode    config.SeatReservationMode
	now     func() time.Time
}

func NewSeatLedger(
	seats repository.SeatRepository,
	batches repository.BatchRepository,
	mode config.SeatReservationMode,
) *SeatLedger {
	if mode == "" {
		mode = config.SeatReservationAtomic
	}
	return &SeatLedger{
		seats:   seats,
		batches: batches,
		mode:    mode,
		now:     time.Now,
	}
}

// GetActiveSeat returns the active grant for a batch, or nil when the batch is unpaid.
func (l *SeatLedger) GetActiveSeat(ctx context.Context, partnerID, batchID string) (*model.SeatSubscription, error) {
	seat, err := l.seats.FindActive(ctx, partnerID, batchID)
	if err != nil {
		return nil, fmt.Errorf("find active seat: %w", err)
	}
	return seat, nil
}

func (l *SeatLedger) AvailableSeats(seat *model.SeatSubscription) int {
	return seat.Available()
}

// Reserve adds count to the grant's assigned seats.
func (l *SeatLedger) Reserve(ctx context.Context, seatID string, count int) error {
	if count <= 0 {
		return nil
	}

	var (
		seat *model.SeatSubscription
		err  error
	)
	if l.mode == config.SeatReservationBestEffort {
		seat, err = l.seats.IncrementAssigned(ctx, seatID, count)
	} else {
		seat, err = l.seats.IncrementAssignedIfAvailable(ctx, seatID, count)
	}
	if err != nil {
		metrics.SeatReservations.WithLabelValues("error").Inc()
		return fmt.Errorf("reserve seats: %w", err)
	}
	if seat == nil {
		metrics.SeatReservations.WithLabelValues("exhausted").Inc()
		return ErrSeatsExhausted
	}

	metrics.SeatReservations.WithLabelValues("reserved").Inc()
	log.Debug().
		Str("seatId", seatID).
		Int("count", count).
		Int("seatsAssigned", seat.SeatsAssigned).
		Int("seatCount", seat.SeatCount).
		Msg("seats reserved")

	return nil
}

// ReserveUpTo reserves as many of want seats as the batch's active grant
// allows. In atomic mode a lost race re-reads availability once and retries
// with the smaller count. Returns the grant (nil when unpaid) and the number
// reserved.
func (l *SeatLedger) ReserveUpTo(ctx context.Context, partnerID, batchID string, want int) (*model.SeatSubscription, int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		seat, err := l.GetActiveSeat(ctx, partnerID, batchID)
		if err != nil {
			return nil, 0, err
		}

		n := min(l.AvailableSeats(seat), want)
		if n <= 0 {
			return seat, 0, nil
		}

		err = l.Reserve(ctx, seat.ID, n)
		if err == nil {
			return seat, n, nil
		}
		if !errors.Is(err, ErrSeatsExhausted) {
			return nil, 0, err
		}

		log.Info().
			Str("partnerId", partnerID).
			Str("batchId", batchID).
			Int("requested", n).
			Int("attempt", attempt+1).
			Msg("seat reservation lost race")
	}
	return nil, 0, nil
}

// Release subtracts count from the grant's assigned seats, floored at zero.
func (l *SeatLedger) Release(ctx context.Context, seatID string, count int) error {
	if count <= 0 {
		return nil
	}
	seat, err := l.seats.DecrementAssigned(ctx, seatID, count)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if seat == nil {
		return fmt.Errorf("release seats: seat %s not found", seatID)
	}
	return nil
}

// ReleaseOrLog releases seats that were reserved for writes that did not
// commit. Failures are recorded and never returned.
func (l *SeatLedger) ReleaseOrLog(ctx context.Context, partnerID, seatID string, count int) {
	if err := l.Release(ctx, seatID, count); err != nil {
		metrics.SeatReleases.WithLabelValues("failed").Inc()
		log.Error().
			Err(err).
			Str("partnerId", partnerID).
			Str("seatId", seatID).
			Int("count", count).
			Msg("seat release failed")
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSeatReleaseFailed,
			PartnerID: partnerID,
			Details:   map[string]any{"seatId": seatID, "count": count, "error": err.Error()},
		})
		return
	}

	metrics.SeatReleases.WithLabelValues("released").Inc()
	audit.Log(ctx, audit.Event{
		Type:      audit.EventSeatRelease,
		PartnerID: partnerID,
		Details:   map[string]any{"seatId": seatID, "count": count},
	})
}

// Deactivate ends the batch's active grant. Candidates already assigned keep
// their seats.
func (l *SeatLedger) Deactivate(ctx context.Context, partnerID, batchID string) error {
	if !util.IsValidUUID(batchID) {
		return apperrors.NotFound("Active seat subscription")
	}

	n, err := l.seats.Deactivate(ctx, partnerID, batchID)
	if err != nil {
		return fmt.Errorf("deactivate seat: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("Active seat subscription")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSeatDeactivate,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details:   map[string]any{"batchId": batchID},
	})
	return nil
}

// CreateSeat records a purchased grant. A batch holds at most one active grant.
func (l *SeatLedger) CreateSeat(ctx context.Context, partnerID string, in CreateSeatInput) (*model.SeatSubscription, error) {
	if in.BatchID == "" {
		return nil, apperrors.MissingRequired("batch_id")
	}
	if in.SeatCount <= 0 || in.SeatCount > maxSeatCount {
		return nil, apperrors.InvalidInput("seat_count", fmt.Sprintf("must be between 1 and %d", maxSeatCount))
	}
	if in.SessionsPerDay == 0 {
		in.SessionsPerDay = 1
	}
	if in.SessionsPerDay < 0 {
		return nil, apperrors.InvalidInput("sessions_per_day", "must be positive")
	}
	if in.StartDate.IsZero() {
		in.StartDate = l.now()
	}
	if in.EndDate.IsZero() || !in.EndDate.After(in.StartDate) {
		return nil, apperrors.InvalidInput("end_date", "must be after start_date")
	}

	if _, err := l.ownedBatch(ctx, partnerID, in.BatchID); err != nil {
		return nil, err
	}

	existing, err := l.GetActiveSeat(ctx, partnerID, in.BatchID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("Batch already has an active seat subscription")
	}

	seat, err := l.seats.Create(ctx, model.CreateSeatParams{
		PartnerID:      partnerID,
		BatchID:        in.BatchID,
		SeatCount:      in.SeatCount,
		SessionsPerDay: in.SessionsPerDay,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("Batch already has an active seat subscription")
		}
		return nil, fmt.Errorf("create seat: %w", err)
	}

	log.Info().
		Str("partnerId", partnerID).
		Str("batchId", in.BatchID).
		Int("seatCount", in.SeatCount).
		Msg("seat subscription created")
	audit.Log(ctx, audit.Event{
		Type:      audit.EventSeatCreate,
		ActorID:   partnerID,
		PartnerID: partnerID,
		Details:   map[string]any{"seatId": seat.ID, "batchId": in.BatchID, "seatCount": in.SeatCount},
	})

	return seat, nil
}

func (l *SeatLedger) ListSeats(ctx context.Context, partnerID string) ([]model.SeatSubscription, error) {
	seats, err := l.seats.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	if seats == nil {
		seats = []model.SeatSubscription{}
	}
	return seats, nil
}

func (l *SeatLedger) Availability(ctx context.Context, partnerID, batchID string) (*SeatAvailability, error) {
	if _, err := l.ownedBatch(ctx, partnerID, batchID); err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeValidation {
			return nil, apperrors.NotFound("Batch")
		}
		return nil, err
	}

	seat, err := l.GetActiveSeat(ctx, partnerID, batchID)
	if err != nil {
		return nil, err
	}

	view := &SeatAvailability{BatchID: batchID}
	if seat != nil {
		view.SeatID = &seat.ID
		view.SeatCount = seat.SeatCount
		view.SeatsAssigned = seat.SeatsAssigned
		view.Available = l.AvailableSeats(seat)
		view.IsActive = seat.IsActive
	}
	return view, nil
}

// DeactivateExpired ends every active grant whose end date has passed.
func (l *SeatLedger) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := l.seats.DeactivateEnded(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("deactivate ended seats: %w", err)
	}
	return n, nil
}

func (l *SeatLedger) ownedBatch(ctx context.Context, partnerID, batchID string) (*model.CandidateBatch, error) {
	if !util.IsValidUUID(batchID) {
		return nil, apperrors.ValidationError("Invalid batch")
	}
	batch, err := l.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	if batch == nil || batch.PartnerID != partnerID {
		return nil, apperrors.ValidationError("Invalid batch")
	}
	return batch, nil
}
