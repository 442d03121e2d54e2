package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
)

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code trajerr.Code) int {
	switch code {
	case trajerr.ErrCodeInvalidInput, trajerr.ErrCodeInvalidDataset, trajerr.ErrCodeInvalidOption, trajerr.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case trajerr.ErrCodeNotFound:
		return http.StatusNotFound
	case trajerr.ErrCodeSolverInfeasible:
		return http.StatusUnprocessableEntity
	case trajerr.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case trajerr.ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a standardized JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := trajerr.GetCode(err)
	if code == "" {
		code = trajerr.ErrCodeInternal
	}
	respondJSON(w, statusFor(code), errorBody{
		Error:     errorDetail{Code: string(code), Message: trajerr.UserMessage(err)},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
