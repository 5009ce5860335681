package httpx

import (
	"errors"
	"net/http"
)

// Sentinels for errors that carry no domain mapping of their own.
// Handlers translate their package sentinels explicitly and hand
// everything else to RespondError.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
)

// RespondError is the fallback renderer for errors no handler mapping
// claimed.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
