// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorRule maps a domain error onto a problem response.
type ErrorRule struct {
	Target error
	Status int
	Title  string
}

var baseRules = []ErrorRule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: shared.ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Target: ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
	{Target: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Title: "Already Processed"},
	{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: shared.ErrInvalidInput, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: shared.ErrScopeRequired, Status: http.StatusBadRequest, Title: "Scope Required"},
	{Target: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Rules are
// checked before the built-in ones, first match wins.
func RespondError(w http.ResponseWriter, err error, rules ...ErrorRule) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: verr.Error(),
			Fields: verr.Fields,
		})
		return
	}
	for _, set := range [][]ErrorRule{rules, baseRules} {
		for _, rule := range set {
			if errors.Is(err, rule.Target) {
				Problem(w, rule.Status, rule.Title, err.Error())
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
