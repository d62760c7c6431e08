package resilience

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient error type", NewTransientError(eris.New("status 503"), 503), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(eris.New("x"), 429)), true},
		{"connection reset errno", syscall.ECONNRESET, true},
		{"connection refused errno", syscall.ECONNREFUSED, true},
		{"reset message", eris.New("read tcp: connection reset by peer"), true},
		{"io timeout message", eris.New("dial tcp: i/o timeout"), true},
		{"no such host", eris.New("lookup api.example.com: no such host"), true},
		{"plain error", eris.New("status 400: bad request"), false},
		{"not found", eris.New("contact not found"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("boom")
	te := NewTransientError(inner, 500)
	assert.Equal(t, "boom", te.Error())
	assert.Equal(t, 500, te.StatusCode)
	assert.ErrorIs(t, te, inner)
}
