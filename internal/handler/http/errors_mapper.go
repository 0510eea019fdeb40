package http

import (
	"errors"
	"net/http"

	"github.com/packsync-app/packsync/internal/service"
	"github.com/packsync-app/packsync/internal/store"
)

var errorStatusMap = map[error]int{
	service.ErrInvalidEmail:         http.StatusBadRequest,
	service.ErrMagicLinkInvalid:     http.StatusUnauthorized,
	service.ErrInvalidDigest:        http.StatusBadRequest,
	service.ErrHashMismatch:         http.StatusBadRequest,
	service.ErrImageTooLarge:        http.StatusRequestEntityTooLarge,
	service.ErrUnsupportedImageType: http.StatusUnsupportedMediaType,
	service.ErrImageNotFound:        http.StatusNotFound,

	store.ErrUnknownTable:     http.StatusBadRequest,
	store.ErrMagicLinkInvalid: http.StatusUnauthorized,
	store.ErrSessionNotFound:  http.StatusUnauthorized,
	store.ErrAccountNotFound:  http.StatusNotFound,
	store.ErrRecordNotFound:   http.StatusNotFound,
	store.ErrImageNotFound:    http.StatusNotFound,

	store.ErrBuildingSQLQuery:     http.StatusInternalServerError,
	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrBeginningTransaction: http.StatusInternalServerError,
	store.ErrCommitingTransaction: http.StatusInternalServerError,
	store.ErrExecutingStatement:   http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
	store.ErrScanningRows:         http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
