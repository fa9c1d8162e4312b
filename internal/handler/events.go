package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/service"
	"github.com/prepwise/partner-server-go/internal/sse"
)

const (
	// replayLimit bounds how many recent notifications are scanned for unread
	// ones when a stream opens.
	replayLimit     = 20
	reconnectMillis = 5000
)

// eventStream writes Server-Sent Events frames and flushes after each one.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s eventStream) send(event sse.Event) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s eventStream) sendJSON(eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.send(sse.Event{Type: eventType, Data: raw})
}

func (s eventStream) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// GET /v1/notifications/events
// Streams notifications to the signed-in user. Unread notifications are
// replayed first, oldest first, then live events follow.
func (h *NotificationHandler) Events(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before replaying so nothing published in between is lost.
	client := h.broker.Subscribe(p.UserID)
	defer h.broker.Unsubscribe(client)

	stream := eventStream{w: w, flusher: flusher}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", reconnectMillis); err != nil {
		return
	}
	if err := stream.sendJSON("connected", map[string]any{
		"userId":      p.UserID,
		"connectedAt": time.Now().UTC(),
	}); err != nil {
		return
	}
	if err := h.replayUnread(r.Context(), stream, p.UserID); err != nil {
		return
	}

	log.Info().Str("userId", p.UserID).Msg("sse connection established")

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("userId", p.UserID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("userId", p.UserID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := stream.send(event); err != nil {
				log.Warn().Err(err).Str("userId", p.UserID).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if err := stream.comment("ping"); err != nil {
				return
			}
		}
	}
}

// replayUnread only fails on write errors; a failed lookup is logged and the
// stream continues with live events.
func (h *NotificationHandler) replayUnread(ctx context.Context, stream eventStream, userID string) error {
	recent, err := h.inbox.List(ctx, userID, replayLimit, 0)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to load unread notifications")
		return nil
	}

	unread := make([]model.Notification, 0, len(recent))
	for _, n := range recent {
		if n.ReadAt == nil {
			unread = append(unread, n)
		}
	}
	// List is newest first.
	slices.Reverse(unread)

	for _, n := range unread {
		if err := stream.sendJSON(service.EventTypeNotification, n); err != nil {
			return err
		}
	}
	return nil
}
