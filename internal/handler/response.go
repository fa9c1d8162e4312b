package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prepwise/partner-server-go/internal/auth"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/httputil"
	"github.com/prepwise/partner-server-go/internal/middleware"
	"github.com/prepwise/partner-server-go/internal/service"
)

const dateLayout = "2006-01-02"

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	httputil.WriteSuccess(w, status, message, data)
}

// writeSuccessWithWarnings attaches best-effort failures as metadata.warnings.
func writeSuccessWithWarnings(w http.ResponseWriter, status int, message string, data any, warnings []service.Warning) {
	var meta any
	if len(warnings) > 0 {
		meta = map[string]any{"warnings": warnings}
	}
	httputil.WriteSuccessWithMeta(w, status, message, data, meta)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.BadRequest("Request body too large").WithStatus(http.StatusRequestEntityTooLarge)
	}
	return apperrors.BadRequest("Invalid request body").WithCause(err)
}

// principal returns the authenticated caller, writing 401 when there is none.
func principal(w http.ResponseWriter, r *http.Request) *auth.Principal {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
	}
	return p
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(field, "expected YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
