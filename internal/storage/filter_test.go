package storage_test

import (
	"testing"
	"time"

	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
)

func TestConsultationFilter_Matches(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := &models.ConsultationRequest{
		RequesterID: "u1",
		ProviderID:  "p1",
		Status:      models.StatusAccepted,
		RequestedAt: t0,
		ExpiresAt:   t0.Add(5 * time.Minute),
	}
	dayLater := t0.Add(24 * time.Hour)
	atExpiry := t0.Add(5 * time.Minute)
	afterExpiry := atExpiry.Add(time.Nanosecond)

	tests := []struct {
		name string
		f    storage.ConsultationFilter
		want bool
	}{
		{"empty", storage.ConsultationFilter{}, true},
		{"provider", storage.ConsultationFilter{ProviderID: "p1"}, true},
		{"other provider", storage.ConsultationFilter{ProviderID: "p2"}, false},
		{"status in list", storage.ConsultationFilter{Statuses: models.HistoryStatuses}, true},
		{"status not in list", storage.ConsultationFilter{Statuses: []models.ConsultationStatus{models.StatusPending}}, false},
		{"unexpired at expiry", storage.ConsultationFilter{UnexpiredAt: &atExpiry}, true},
		{"unexpired after expiry", storage.ConsultationFilter{UnexpiredAt: &afterExpiry}, false},
		{"requested since later", storage.ConsultationFilter{RequestedSince: &dayLater}, false},
		{"not pending and old", storage.ConsultationFilter{PendingOrRequestedSince: &dayLater}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Matches(req))
		})
	}
}

func TestMessageFilter_Between(t *testing.T) {
	f := storage.MessageFilter{Between: []string{"a", "b"}}
	assert.True(t, f.Matches(&models.Message{SenderID: "a", ReceiverID: "b"}))
	assert.True(t, f.Matches(&models.Message{SenderID: "b", ReceiverID: "a"}))
	assert.False(t, f.Matches(&models.Message{SenderID: "a", ReceiverID: "c"}))
}
