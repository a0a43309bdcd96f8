package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/git2pdf/internal/converter"
)

// Error kinds produced by the HTTP layer itself.
const (
	kindBadRequest  = "bad_request"
	kindRateLimited = "rate_limited"
	kindForbidden   = "forbidden"
)

var kindStatus = map[string]int{
	converter.KindInvalidRepository:     http.StatusBadRequest,
	converter.KindTooManyConversions:    http.StatusTooManyRequests,
	converter.KindCloneTimeout:          http.StatusGatewayTimeout,
	converter.KindCloneFailed:           http.StatusBadGateway,
	converter.KindFileCountExceeded:     http.StatusUnprocessableEntity,
	converter.KindSizeBudgetExceeded:    http.StatusUnprocessableEntity,
	converter.KindArtifactTooLarge:      http.StatusUnprocessableEntity,
	converter.KindNoUsableWorkspace:     http.StatusInsufficientStorage,
	converter.KindInsufficientDiskSpace: http.StatusInsufficientStorage,
	converter.KindArtifactNotFound:      http.StatusNotFound,
	converter.KindCanceled:              http.StatusRequestTimeout,
}

// statusForKind maps a failure kind to an HTTP status.
func statusForKind(kind string) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeConversionError replies with the status and kind for err. Internal
// errors are not echoed to the client.
func writeConversionError(c echo.Context, err error) error {
	kind := converter.Kind(err)
	msg := err.Error()
	if kind == converter.KindInternal {
		msg = "internal error"
	}
	return c.JSON(statusForKind(kind), ErrorResponse{Error: kind, Message: msg})
}
