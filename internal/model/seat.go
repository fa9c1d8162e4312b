package model

import (
	"time"
)

// SeatSubscription is a purchased grant of seats for one partner batch.
type SeatSubscription struct {
	ID             string    `db:"id" json:"seat_id"`
	PartnerID      string    `db:"partner_id" json:"partner_id"`
	BatchID        string    `db:"batch_id" json:"batch_id"`
	SeatCount      int       `db:"seat_count" json:"seat_count"`
	SeatsAssigned  int       `db:"seats_assigned" json:"seats_assigned"`
	SessionsPerDay int       `db:"sessions_per_day" json:"sessions_per_day"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Available is seat_count minus seats_assigned, floored at zero.
func (s *SeatSubscription) Available() int {
	if s == nil {
		return 0
	}
	if n := s.SeatCount - s.SeatsAssigned; n > 0 {
		return n
	}
	return 0
}

type CreateSeatParams struct {
	PartnerID      string
	BatchID        string
	SeatCount      int
	SessionsPerDay int
	StartDate      time.Time
	EndDate        time.Time
}

// SeatUsage is a reporting projection joining a grant with its batch and partner.
type SeatUsage struct {
	SeatID           string    `db:"seat_id"`
	PartnerID        string    `db:"partner_id"`
	OrganizationName string    `db:"organization_name"`
	BatchName        string    `db:"batch_name"`
	SeatCount        int       `db:"seat_count"`
	SeatsAssigned    int       `db:"seats_assigned"`
	IsActive         bool      `db:"is_active"`
	EndDate          time.Time `db:"end_date"`
}
