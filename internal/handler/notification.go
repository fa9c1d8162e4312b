package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepwise/partner-server-go/internal/model"
	"github.com/prepwise/partner-server-go/internal/sse"
)

type NotificationInbox interface {
	List(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*model.Notification, error)
}

// Subscriber hands out live event streams per user.
type Subscriber interface {
	Subscribe(userID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

type NotificationHandler struct {
	inbox  NotificationInbox
	broker Subscriber
}

func NewNotificationHandler(inbox NotificationInbox, broker Subscriber) *NotificationHandler {
	return &NotificationHandler{
		inbox:  inbox,
		broker: broker,
	}
}

// Routes serves the inbox. Events is mounted on its own so the stream is not
// cut off by the request timeout.
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/{notificationID}/read", h.MarkRead)

	return r
}

// GET /v1/notifications?limit=&offset=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	page := ParsePagination(r)
	items, err := h.inbox.List(r.Context(), p.UserID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, "Notifications retrieved successfully", items, page, len(items))
}

// POST /v1/notifications/{notificationID}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p := principal(w, r)
	if p == nil {
		return
	}

	n, err := h.inbox.MarkRead(r.Context(), p.UserID, chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Notification marked as read", n)
}
