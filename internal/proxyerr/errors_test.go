package proxyerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromUpstreamStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindInvalidRequest},
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusForbidden, KindAuthentication},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusInternalServerError, KindAPI},
		{http.StatusServiceUnavailable, KindAPI},
		{http.StatusTeapot, KindAPI},
	}
	for _, c := range cases {
		got := FromUpstreamStatus(c.status, "boom")
		assert.Equal(t, c.want, got.Kind, "status %d", c.status)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Kind: KindAPI, Message: "wrapped", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestAs(t *testing.T) {
	wrapped := errorsWrap(InvalidRequest("max_tokens", "must be >= 1"))
	pe, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInvalidRequest, pe.Kind)
	assert.Equal(t, "max_tokens", pe.Field)
}

func errorsWrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestToJSON(t *testing.T) {
	err := InvalidRequest("temperature", "must be between 0 and 2")
	j := err.ToJSON()
	assert.Equal(t, "error", j.Type)
	assert.Equal(t, KindInvalidRequest, j.Error.Type)
	assert.Contains(t, j.Error.Message, "temperature")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, (&Error{Kind: KindInvalidRequest}).HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, (&Error{Kind: KindAuthentication}).HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, (&Error{Kind: KindRateLimit}).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Error{Kind: KindInternal}).HTTPStatus())
}
