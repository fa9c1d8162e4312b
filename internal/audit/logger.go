// Package audit writes structured audit records for seat, invite and
// authentication events.
package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventCandidateCreate   EventType = "candidate_create"
	EventCSVUpload         EventType = "csv_upload"
	EventSeatReserve       EventType = "seat_reserve"
	EventSeatRelease       EventType = "seat_release"
	EventSeatReleaseFailed EventType = "seat_release_failed"
	EventSeatCreate        EventType = "seat_create"
	EventSeatDeactivate    EventType = "seat_deactivate"
	EventInviteSent        EventType = "invite_sent"
	EventInviteAccept      EventType = "invite_accept"
	EventInviteExpire      EventType = "invite_expire"
	EventMarkPaid          EventType = "mark_paid"
	EventBatchAssign       EventType = "batch_assign"
	EventEnrollment        EventType = "enrollment"
	EventAuthFailure       EventType = "auth_failure"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	ActorID   string
	PartnerID string
	ClientIP  string
	UserAgent string
	Details   map[string]any
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "partner").
		Str("eventType", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ActorID != "" {
		logger = logger.With().Str("actorId", event.ActorID).Logger()
	}
	if event.PartnerID != "" {
		logger = logger.With().Str("partnerId", event.PartnerID).Logger()
	}
	if event.ClientIP != "" {
		logger = logger.With().Str("ip", event.ClientIP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("userAgent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case []string:
		return e.Strs(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills the client fields from r before logging.
func LogFromRequest(r *http.Request, event Event) {
	event.ClientIP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
