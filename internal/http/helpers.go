package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"conti/internal/core"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "status", status, "path", r.URL.Path, "error", msg)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err.Error())
}

func statusForError(err error) int {
	var imbalanced *core.ImbalancedError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAccountReferenced),
		errors.Is(err, core.ErrNoFundingAccount):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInsufficientLines),
		errors.Is(err, core.ErrUnknownAccount),
		errors.Is(err, core.ErrUnknownAccountType),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrSideMismatch),
		errors.Is(err, core.ErrInvalidDayOfMonth),
		errors.As(err, &imbalanced):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes a request body into dst, bounding the body size.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. A
// missing parameter yields the zero time.
func parseDateQuery(r *http.Request, name string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(core.DateOnly, v, time.UTC)
}

// MonthOnly is the wire format for report month parameters.
const MonthOnly = "2006-01"

// parseMonthQuery reads an optional YYYY-MM query parameter. fallback
// is returned when the parameter is missing.
func parseMonthQuery(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	return time.ParseInLocation(MonthOnly, v, time.UTC)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
