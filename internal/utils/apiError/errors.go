package apiError

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/the127/stevedore/internal/args"
	"github.com/the127/stevedore/internal/logging"
)

var ErrApiBadRequest = errors.New("bad Request")
var ErrApiUnsupportedMediaType = errors.New("unsupported media type")

var ErrApiNotFound = errors.New("not found")
var ErrApiSessionNotFound = fmt.Errorf("upload session not found: %w", ErrApiNotFound)
var ErrApiChunkNotFound = fmt.Errorf("chunk not found: %w", ErrApiNotFound)

// Admission rejections, mapped to their client-visible statuses.
var ErrApiPayloadTooLarge = errors.New("payload too large")
var ErrApiTooManyUploads = errors.New("too many concurrent uploads")
var ErrApiServiceUnavailable = errors.New("service unavailable")

// Integrity failures are terminal: the upload must be restarted from scratch.
var ErrApiUploadCorrupted = errors.New("upload corrupted, restart required")

var ErrApiConflict = errors.New("conflict")

func HandleHttpError(w http.ResponseWriter, err error) {
	var code int
	var message string

	switch {
	case errors.Is(err, ErrApiBadRequest):
		code = http.StatusBadRequest
		message = err.Error()

	case errors.Is(err, ErrApiNotFound):
		code = http.StatusNotFound
		message = err.Error()

	case errors.Is(err, ErrApiUnsupportedMediaType):
		code = http.StatusUnsupportedMediaType
		message = err.Error()

	case errors.Is(err, ErrApiPayloadTooLarge):
		code = http.StatusRequestEntityTooLarge
		message = err.Error()

	case errors.Is(err, ErrApiTooManyUploads):
		code = http.StatusTooManyRequests
		message = err.Error()

	case errors.Is(err, ErrApiServiceUnavailable):
		code = http.StatusServiceUnavailable
		message = err.Error()

	case errors.Is(err, ErrApiUploadCorrupted):
		code = http.StatusUnprocessableEntity
		message = err.Error()

	case errors.Is(err, ErrApiConflict):
		code = http.StatusConflict
		message = err.Error()

	default:
		code = http.StatusInternalServerError
		if args.IsProduction() {
			message = "Internal Server Error"
		} else {
			message = err.Error()
		}
	}

	logging.Logger.Errorf("HTTP Error: %d %s", code, message)
	http.Error(w, message, code)
}
