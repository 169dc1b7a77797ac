package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/jaego/internal/model"
)

const maxBodySize = 1 << 20

type okEnvelope struct {
	OK        bool   `json:"ok"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type errorEnvelope struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// jsonResponse writes data in the success envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, okEnvelope{OK: true, Data: data, Timestamp: timestamp()})
}

// jsonError writes a failure envelope with the code matching status.
func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message, Code: codeFor(status), Timestamp: timestamp()})
}

// writeError maps domain errors to their status; anything else is logged
// and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var merr *model.Error
	if errors.As(err, &merr) {
		writeJSON(w, statusFor(merr.Code), errorEnvelope{
			Error:     merr.Message,
			Code:      merr.Code,
			Details:   merr.Details,
			Timestamp: timestamp(),
		})
		return
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
	jsonError(w, http.StatusInternalServerError, "internal error")
}

func statusFor(code string) int {
	switch code {
	case model.CodeInvalidArgument, model.CodeInsufficientStock:
		return http.StatusBadRequest
	case model.CodeUnauthenticated:
		return http.StatusUnauthorized
	case model.CodeForbidden:
		return http.StatusForbidden
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return model.CodeInvalidArgument
	case http.StatusUnauthorized:
		return model.CodeUnauthenticated
	case http.StatusForbidden:
		return model.CodeForbidden
	case http.StatusNotFound:
		return model.CodeNotFound
	case http.StatusConflict:
		return model.CodeConflict
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return model.CodeInternal
	}
}

// partialFailure reports a batch where every entry failed. The per-entry
// results travel in the details.
func partialFailure(w http.ResponseWriter, message string, results any) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{
		Error:     message,
		Code:      model.CodeInvalidArgument,
		Details:   results,
		Timestamp: timestamp(),
	})
}

// decodeJSON decodes the request body into target and validates it.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(target); err != nil {
		return model.InvalidArgument("invalid request body: %v", err)
	}
	return model.Validate(target)
}

// queryInt returns the integer query parameter or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.InvalidArgument("%s must be a number", name)
	}
	return n, nil
}

// queryDate returns a YYYY-MM-DD query parameter, or "" when absent.
func queryDate(r *http.Request, names ...string) (string, error) {
	for _, name := range names {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return "", model.InvalidArgument("%s must be a date (YYYY-MM-DD)", name)
		}
		return v, nil
	}
	return "", nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func queryTime(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, model.InvalidArgument("%s must be a date or RFC 3339 timestamp", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
