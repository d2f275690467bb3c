package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps a coded error onto an HTTP status and a safe public
// message. Internal and dependency failures never leak their cause.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := svcerrors.As(err)
	if typed == nil {
		typed = svcerrors.Wrap(svcerrors.CodeInternal, err, "unexpected error")
	}

	status, public := statusFor(typed.Code())
	if public == "" {
		public = typed.Message()
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"error_code": string(typed.Code()),
			"status":     status,
		})
		logg.Error(logCtx, "request.error", err)
	}

	writeJSON(w, status, ErrorEnvelope{Error: APIError{
		Code:    string(typed.Code()),
		Message: public,
	}})
}

// statusFor returns the HTTP status and, for codes whose detail must not
// leak, a fixed public message.
func statusFor(code svcerrors.Code) (int, string) {
	switch code {
	case svcerrors.CodeValidation:
		return http.StatusBadRequest, ""
	case svcerrors.CodeNotFound:
		return http.StatusNotFound, ""
	case svcerrors.CodeConflict:
		return http.StatusConflict, ""
	case svcerrors.CodeDependency:
		return http.StatusServiceUnavailable, "a dependent service is unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
