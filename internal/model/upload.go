package model

import (
	"time"
)

// CandidateUpload records one bulk CSV upload for audit.
type CandidateUpload struct {
	ID         string    `db:"id" json:"id"`
	PartnerID  string    `db:"partner_id" json:"partner_id"`
	BatchID    *string   `db:"batch_id" json:"batch_id"`
	ObjectKey  *string   `db:"object_key" json:"object_key,omitempty"`
	Filename   string    `db:"filename" json:"filename"`
	TotalRows  int       `db:"total_rows" json:"total_rows"`
	Successful int       `db:"successful" json:"successful"`
	Failed     int       `db:"failed" json:"failed"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type CreateCandidateUploadParams struct {
	PartnerID  string
	BatchID    *string
	ObjectKey  *string
	Filename   string
	TotalRows  int
	Successful int
	Failed     int
}
