package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"astrochat/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("accept: %w", apperr.StateConflict("Request is already accepted", "accepted"))

	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "accepted", apperr.StatusOf(err))
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	err := errors.New("connection reset by peer")

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Internal server error", apperr.PublicMessage(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
}

func TestInternal_HidesCause(t *testing.T) {
	err := apperr.Internal("store failure", errors.New("pq: relation does not exist"))

	assert.Contains(t, err.Error(), "relation does not exist")
	assert.Equal(t, "Internal server error", apperr.PublicMessage(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Authentication("Invalid token", nil), http.StatusUnauthorized},
		{apperr.Validation("Message cannot be empty"), http.StatusBadRequest},
		{apperr.NotFound("Request not found"), http.StatusNotFound},
		{apperr.Authorization("Only astrologers can access this"), http.StatusForbidden},
		{apperr.StateConflict("Request is already declined", "declined"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(string(apperr.KindOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
			assert.Equal(t, tt.err.Error(), apperr.PublicMessage(tt.err))
		})
	}
}
