package storage

import (
	"time"

	"astrochat/backend/internal/models"

	"github.com/samber/lo"
)

// ConsultationFilter selects consultation requests. Zero fields do not constrain.
// Results are always ordered by requestedAt, newest first.
type ConsultationFilter struct {
	RequesterID string
	ProviderID  string
	Statuses    []models.ConsultationStatus
	// UnexpiredAt keeps rows whose expiresAt is not before the given instant.
	UnexpiredAt    *time.Time
	RequestedSince *time.Time
	// PendingOrRequestedSince keeps pending rows plus anything requested since the instant.
	PendingOrRequestedSince *time.Time

	Skip  int
	Limit int
}

// Matches evaluates the filter in memory.
func (f ConsultationFilter) Matches(r *models.ConsultationRequest) bool {
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.ProviderID != "" && r.ProviderID != f.ProviderID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.UnexpiredAt != nil && r.ExpiresAt.Before(*f.UnexpiredAt) {
		return false
	}
	if f.RequestedSince != nil && r.RequestedAt.Before(*f.RequestedSince) {
		return false
	}
	if f.PendingOrRequestedSince != nil && r.Status != models.StatusPending && r.RequestedAt.Before(*f.PendingOrRequestedSince) {
		return false
	}
	return true
}

func (f ConsultationFilter) statusStrings() []string {
	return lo.Map(f.Statuses, func(s models.ConsultationStatus, _ int) string { return string(s) })
}

// MessageFilter selects messages for counting.
type MessageFilter struct {
	SenderID   string
	ReceiverID string
	// Between restricts to messages exchanged in either direction by the two ids.
	Between    []string
	UnreadOnly bool
}

func (f MessageFilter) Matches(m *models.Message) bool {
	if f.SenderID != "" && m.SenderID != f.SenderID {
		return false
	}
	if f.ReceiverID != "" && m.ReceiverID != f.ReceiverID {
		return false
	}
	if len(f.Between) == 2 {
		a, b := f.Between[0], f.Between[1]
		if !(m.SenderID == a && m.ReceiverID == b) && !(m.SenderID == b && m.ReceiverID == a) {
			return false
		}
	}
	if f.UnreadOnly && m.IsRead {
		return false
	}
	return true
}
