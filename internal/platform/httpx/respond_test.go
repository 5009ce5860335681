package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"not found", fmt.Errorf("%w: order 7", ErrNotFound), http.StatusNotFound, "Not Found"},
		{"validation", fmt.Errorf("%w: qty must be positive", ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{"unknown errors stay opaque", errors.New("pool exhausted"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			require.Contains(t, rec.Body.String(), tc.title)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("dsn=postgres://secret"))
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestDecodeJSONWrapsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var target struct{}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}
