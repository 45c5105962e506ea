package httpadapter

import (
	"net/http"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// Fail fast on bad input, fail soft on bad backends: source failures
// never reach this mapping, they ride inside a 200 outcome.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidStrategy):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
