package httpadapter

import (
	"net/http"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyDecided):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrNoStagedActivities):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrTransactionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
