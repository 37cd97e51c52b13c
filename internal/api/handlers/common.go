// Package handlers provides HTTP request handlers for the Reconnoiter API.
// This file contains common utilities shared across all handlers: JSON
// encoding, strict request parsing and the mapping from error codes to
// HTTP statuses.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/reconnoiter/internal/api/middleware"
	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone, only log.
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response with an explicit status.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}
	writeJSON(w, r, statusCode, response)
}

// writeCodedError picks the status from the error's code.
func writeCodedError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, StatusForError(r.Context(), err), err)
}

// MethodNotAllowed answers 405 and lists the allowed methods.
func MethodNotAllowed(allowed ...string) http.Handler {
	allow := strings.Join(allowed, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, r, http.StatusMethodNotAllowed,
			fmt.Errorf("method %s not allowed, use %s", r.Method, allow))
	})
}

// StatusForError maps an error to the HTTP status a client should see.
func StatusForError(ctx context.Context, err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeTargetInvalid, errors.CodeConfiguration:
		return http.StatusBadRequest
	case errors.CodeResolution:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodePermission:
		return http.StatusForbidden
	case errors.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeCanceled:
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes the body strictly into dest and validates it.
func parseJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.WrapScanError(errors.CodeValidation,
				fmt.Sprintf("request body too large (max %d bytes)", maxErr.Limit), err)
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid JSON: "+err.Error(), err)
	}

	return validateRequest(dest)
}

// validateRequest runs struct tag validation and reports the first failure
// by its JSON field name.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return errors.WrapScanError(errors.CodeValidation,
			fmt.Sprintf("field %q failed %s validation", field, fe.Tag()), err).
			WithContext("field", field)
	}
	return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
}
