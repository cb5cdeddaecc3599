package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindInvalidState: http.StatusUnprocessableEntity,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("accept: %w", Conflict("already assigned").WithStatus(models.StatusAccepted))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(nil, KindConflict))
}

func TestFrom_HidesInternalDetail(t *testing.T) {
	cause := errors.New("pq: connection refused")
	e := From(cause)

	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, "internal server error", e.Message)
	assert.ErrorIs(t, e, cause)
}
