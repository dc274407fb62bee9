package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"collexa/admin"
	"collexa/auth"
	"collexa/listing"
	"collexa/mailer"
	"collexa/ratelimit"
	"collexa/report"
	"collexa/storage"
)

// envelope is the uniform response shape. Every endpoint, success or failure,
// returns one of these.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}

func respondData(w http.ResponseWriter, status int, data any) {
	respond(w, status, "", data)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respond(w, status, message, nil)
}

// respondError translates domain sentinels into HTTP statuses. Anything not
// recognized is a 500 with a generic body; the cause goes to the log, keyed by
// the request id.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		message = "internal error"
	}
	respond(w, status, message, nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidOTP),
		errors.Is(err, listing.ErrValidation),
		errors.Is(err, report.ErrValidation),
		errors.Is(err, admin.ErrValidation),
		errors.Is(err, errBadJSON):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, auth.ErrNotVerified),
		errors.Is(err, listing.ErrNotVerified),
		errors.Is(err, report.ErrNotVerified),
		errors.Is(err, report.ErrOwnListing),
		errors.Is(err, listing.ErrForbidden),
		errors.Is(err, report.ErrForbidden),
		errors.Is(err, admin.ErrForbidden):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, listing.ErrNotFound),
		errors.Is(err, report.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, report.ErrDuplicate),
		errors.Is(err, listing.ErrNotExpired):
		return http.StatusConflict, err.Error()

	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests, err.Error()

	case errors.Is(err, mailer.ErrSend),
		errors.Is(err, storage.ErrUnavailable):
		return http.StatusBadGateway, "upstream dependency failed"
	}
	return http.StatusInternalServerError, ""
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadJSON
	}
	return nil
}

var errBadJSON = errors.New("httpapi: malformed request body")
