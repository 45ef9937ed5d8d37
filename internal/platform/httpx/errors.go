package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// ErrMalformedRequest marks bodies and headers that could not be decoded.
var ErrMalformedRequest = shared.Validation("MALFORMED_REQUEST", "", "request could not be decoded")

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindPolicy:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// RespondError maps ledger errors to RFC7807 responses. Errors outside the
// taxonomy are reported as 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	var e *shared.Error
	if !errors.As(err, &e) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status := StatusFor(e.Kind)
	var typ string
	if e.Code != "" {
		typ = "urn:ledger:error:" + e.Code
	}
	WriteProblem(w, ProblemDetail{
		Type:      typ,
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    e.Message,
		Code:      e.Code,
		Field:     e.Field,
		ID:        e.ID,
		Retryable: shared.IsRetryable(err),
	})
}
