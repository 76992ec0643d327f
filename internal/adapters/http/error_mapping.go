package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRunNotFound),
		domain.IsKind(err, domain.ErrFileNotFound),
		domain.IsKind(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStateConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrNotPDF):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrConverterUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
