package model

import (
	"time"
)

// PartnerCandidate links a partner to a candidate, optionally within a batch.
// Each link carries its own invitation token so invitations from different
// partners, or for different batches, never overwrite one another.
type PartnerCandidate struct {
	ID                   string       `db:"id" json:"id"`
	PartnerID            string       `db:"partner_id" json:"partner_id"`
	CandidateID          string       `db:"candidate_id" json:"candidate_id"`
	BatchID              *string      `db:"batch_id" json:"batch_id"`
	IsPaidFor            bool         `db:"is_paid_for" json:"is_paid_for"`
	InviteStatus         InviteStatus `db:"invite_status" json:"invite_status"`
	InviteSentAt         time.Time    `db:"invite_sent_at" json:"invite_sent_at"`
	InviteAcceptedAt     *time.Time   `db:"invite_accepted_at" json:"invite_accepted_at,omitempty"`
	InviteTokenHash      *string      `db:"invite_token_hash" json:"-"`
	InviteTokenExpiresAt *time.Time   `db:"invite_token_expires_at" json:"-"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// HasInviteToken reports whether an unexpired invitation token is on file.
func (l *PartnerCandidate) HasInviteToken(now time.Time) bool {
	return l.InviteTokenHash != nil && l.InviteTokenExpiresAt != nil && now.Before(*l.InviteTokenExpiresAt)
}

type CreatePartnerCandidateParams struct {
	PartnerID   string
	CandidateID string
	BatchID     *string
	IsPaidFor   bool
}

// CandidateView is the partner-facing projection of a link joined with its user.
type CandidateView struct {
	LinkID           string       `db:"link_id" json:"-"`
	CandidateID      string       `db:"candidate_id" json:"candidate_id"`
	Firstname        string       `db:"firstname" json:"firstname"`
	Lastname         string       `db:"lastname" json:"lastname"`
	Email            string       `db:"email" json:"email"`
	BatchID          *string      `db:"batch_id" json:"batch_id"`
	IsPaidFor        bool         `db:"is_paid_for" json:"is_paid_for"`
	InviteStatus     InviteStatus `db:"invite_status" json:"invite_status"`
	InviteSentAt     time.Time    `db:"invite_sent_at" json:"invite_sent_at"`
	InviteAcceptedAt *time.Time   `db:"invite_accepted_at" json:"invite_accepted_at,omitempty"`
}

type ListCandidatesFilter struct {
	PartnerID string
	BatchID   *string
	Limit     int
	Offset    int
}
