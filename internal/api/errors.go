package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/docmind/internal/ai"
	"github.com/kalambet/docmind/internal/document"
	"github.com/kalambet/docmind/internal/extract"
	"github.com/kalambet/docmind/internal/retrieval"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxDocumentBodySize = 20 << 20 // 20MB, base64 PDFs

var validate = validator.New(validator.WithRequiredStructEnabled())

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// serviceError maps a domain error to its HTTP status.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, document.ErrForbidden):
		httpError(w, http.StatusForbidden, "permission_error", "%v", err)
	case errors.Is(err, document.ErrAlreadyExists):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, document.ErrInvalidInput),
		errors.Is(err, retrieval.ErrInvalidInput),
		errors.Is(err, extract.ErrEmpty),
		errors.Is(err, extract.ErrUnsupported):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, ai.ErrProvider):
		httpError(w, http.StatusBadGateway, "ai_provider_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

// decodeBody reads a JSON body of at most limit bytes into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	if err := validate.Struct(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
