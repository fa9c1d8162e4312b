package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/database"
	"github.com/prepwise/partner-server-go/internal/metrics"
)

// TxRunner runs fn inside a database transaction. *database.DB satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// Warning reports a follow-up task that failed after the primary write
// committed. The operation itself still succeeded.
type Warning struct {
	Task    string `json:"task"`
	Message string `json:"message"`
}

const (
	TaskPartnerOnboarding = "partner_onboarding"
	TaskExamEnrollment    = "exam_enrollment"
	TaskInvitation        = "invitation"
	TaskObjectStorage     = "object_storage"
	TaskUploadAudit       = "upload_audit"
)

type postCommitTask struct {
	name string
	run  func(ctx context.Context) error
}

// runPostCommit runs every task in order, independently of the others.
func runPostCommit(ctx context.Context, partnerID string, tasks []postCommitTask) []Warning {
	var warnings []Warning
	for _, task := range tasks {
		if err := task.run(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("task", task.name).
				Str("partnerId", partnerID).
				Msg("post-commit task failed")
			metrics.PostCommitFailures.WithLabelValues(task.name).Inc()
			warnings = append(warnings, Warning{Task: task.name, Message: err.Error()})
		}
	}
	return warnings
}

// examDateFrom is the default target exam date for auto-enrollment.
func examDateFrom(now time.Time, offsetMonths int) time.Time {
	return now.AddDate(0, offsetMonths, 0).UTC().Truncate(24 * time.Hour)
}
