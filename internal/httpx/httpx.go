package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"clan-manager/internal/apperr"
	"clan-manager/internal/observability"
)

const MaxJSONBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}

// WriteError renders err as {"error": message}. Unclassified errors are logged,
// sent to Sentry and reach the client only as a generic server error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		appErr = apperr.Internal(errors.New("nil error rendered"))
	}

	if appErr.Kind == apperr.KindServer || appErr.Kind == apperr.KindUpstream {
		cause := appErr.Err
		if cause == nil {
			cause = appErr
		}
		observability.LoggerFrom(r.Context()).Error("request_failed", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  cause.Error(),
		})
		observability.CaptureRequestError(r, cause)
	}

	if appErr.Kind == apperr.KindRateLimit || appErr.Kind == apperr.KindLockout {
		w.Header().Set("Retry-After", RetryAfterSeconds(appErr.RetryAfter))
	}

	WriteJSON(w, appErr.Kind.Status(), map[string]string{"error": appErr.Message})
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// DecodeJSON reads a single JSON object of at most MaxJSONBodyBytes into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return DecodeJSONLimit(w, r, dst, MaxJSONBodyBytes)
}

func DecodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body too large")
		}
		return apperr.Validation("invalid json body")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid json body")
	}

	return nil
}
