package handler

import (
	"net/http"
	"strconv"

	"github.com/prepwise/partner-server-go/internal/httputil"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// writePage writes a list with its paging window as metadata.
func writePage(w http.ResponseWriter, message string, data any, page PaginationParams, count int) {
	httputil.WriteSuccessWithMeta(w, http.StatusOK, message, data, map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
		"count":  count,
	})
}
