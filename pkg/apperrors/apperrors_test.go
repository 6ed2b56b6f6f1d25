package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	cause := errors.New("row missing")
	err := fmt.Errorf("loading account: %w", Wrap(CodeNotFound, "account not found", cause))

	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(err, CodeValidation))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, "account not found", MessageOf(err))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "internal error", MessageOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:           http.StatusBadRequest,
		CodeValidation:           http.StatusBadRequest,
		CodeNotFound:             http.StatusNotFound,
		CodeConflict:             http.StatusConflict,
		CodeInsufficientFunds:    http.StatusUnprocessableEntity,
		CodeReasoningUnavailable: http.StatusServiceUnavailable,
		CodeReasoningTimeout:     http.StatusGatewayTimeout,
		CodeReasoningMalformed:   http.StatusBadGateway,
		CodeInternal:             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
