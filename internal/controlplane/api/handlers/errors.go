package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// httpStatus maps the status codes node operations fail with to HTTP.
var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.Aborted:            http.StatusConflict,
	codes.FailedPrecondition: http.StatusPreconditionFailed,
	codes.ResourceExhausted:  http.StatusServiceUnavailable,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.DataLoss:           http.StatusInternalServerError,
}

// MapStatusError returns the HTTP status and problem code of a node
// operation error.
func MapStatusError(err error) (int, string) {
	st := status.Convert(err)
	code := codeName(st.Code())
	if httpCode, ok := httpStatus[st.Code()]; ok {
		return httpCode, code
	}
	return http.StatusInternalServerError, code
}

// codeName turns codes.DataLoss into "DATA_LOSS".
func codeName(c codes.Code) string {
	var b strings.Builder
	prevLower := false
	for _, r := range c.String() {
		upper := unicode.IsUpper(r)
		if upper && prevLower {
			b.WriteByte('_')
		}
		prevLower = !upper
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// HandleStatusError writes the problem response for a failed node
// operation. A DataLoss failure means the change was applied but could not
// be persisted.
func HandleStatusError(w http.ResponseWriter, r *http.Request, err error) {
	httpCode, code := MapStatusError(err)
	detail := status.Convert(err).Message()
	if httpCode >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "Node operation failed", logger.KeyPath, r.URL.Path,
			logger.KeyStatus, code, logger.Err(err))
	}
	writeProblem(w, &Problem{
		Title:    http.StatusText(httpCode),
		Status:   httpCode,
		Detail:   detail,
		Instance: r.URL.Path,
		Code:     code,
	})
}

// MapStoreError maps control plane store errors to an HTTP status and a
// message safe to show to clients.
func MapStoreError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, models.ErrDuplicateUser):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, models.ErrUserDisabled):
		return http.StatusForbidden, "User account is disabled"
	case errors.Is(err, models.ErrPasswordTooShort), errors.Is(err, models.ErrPasswordTooLong):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// HandleStoreError writes the problem response for a store error.
func HandleStoreError(w http.ResponseWriter, err error) {
	code, msg := MapStoreError(err)
	WriteProblem(w, code, http.StatusText(code), msg)
}
