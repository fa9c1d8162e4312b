package model

import (
	"time"

	"github.com/lib/pq"
)

// PartnerProfile holds organization settings for a partner account.
type PartnerProfile struct {
	UserID              string         `db:"user_id" json:"partner_id"`
	OrganizationName    string         `db:"organization_name" json:"organization_name"`
	ExamTypes           pq.StringArray `db:"exam_types" json:"exam_types"`
	AddedFirstCandidate bool           `db:"added_first_candidate" json:"added_first_candidate"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

type CandidateBatch struct {
	ID        string    `db:"id" json:"batch_id"`
	PartnerID string    `db:"partner_id" json:"partner_id"`
	BatchName string    `db:"batch_name" json:"batch_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateBatchParams struct {
	PartnerID string
	BatchName string
}
