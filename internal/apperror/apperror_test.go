package apperror_test

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"marketplace/internal/apperror"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[apperror.Kind]int{
		apperror.InvalidInput:      http.StatusBadRequest,
		apperror.Unauthorized:      http.StatusUnauthorized,
		apperror.Forbidden:         http.StatusForbidden,
		apperror.NotFound:          http.StatusNotFound,
		apperror.Conflict:          http.StatusConflict,
		apperror.InsufficientStock: http.StatusConflict,
		apperror.Unavailable:       http.StatusServiceUnavailable,
		apperror.Internal:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestKindOfWrappedError(t *testing.T) {
	base := apperror.New(apperror.NotFound, "Order %s not found", "o-1")
	wrapped := errors.Wrap(base, "loading order")

	assert.Equal(t, apperror.NotFound, apperror.KindOf(wrapped))
	assert.True(t, apperror.Is(wrapped, apperror.NotFound))
	assert.Equal(t, "Order o-1 not found", apperror.PublicMessage(wrapped))
}

func TestInternalErrorsHideDetail(t *testing.T) {
	err := apperror.Wrap(errors.New("pq: connection refused"), apperror.Internal, "failed to load product")

	assert.Equal(t, apperror.Internal, apperror.KindOf(err))
	assert.Equal(t, "Internal server error", apperror.PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, apperror.Internal, apperror.KindOf(errors.New("plain")))
	assert.False(t, apperror.Is(nil, apperror.Internal))
}
