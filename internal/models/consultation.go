package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusAccepted  ConsultationStatus = "accepted"
	StatusDeclined  ConsultationStatus = "declined"
	StatusCancelled ConsultationStatus = "cancelled"
	StatusExpired   ConsultationStatus = "expired"
	StatusCompleted ConsultationStatus = "completed"
)

// TerminalStatuses lists every status no transition can leave.
var TerminalStatuses = []ConsultationStatus{StatusDeclined, StatusCancelled, StatusExpired, StatusCompleted}

// HistoryStatuses are the statuses shown in a provider's request history.
var HistoryStatuses = []ConsultationStatus{StatusAccepted, StatusDeclined, StatusExpired, StatusCancelled, StatusCompleted}

func (s ConsultationStatus) IsTerminal() bool {
	return lo.Contains(TerminalStatuses, s)
}

func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

// ConsultationRequest is a time-boxed negotiation between a requester and a provider.
// Rows are never deleted; terminal statuses keep the audit trail.
//
// The partial unique index enforces a single pending request per ordered pair.
type ConsultationRequest struct {
	ID          string             `gorm:"primaryKey;type:text" json:"_id"`
	RequesterID string             `gorm:"type:text;not null;index:idx_requester_status,priority:1;uniqueIndex:ux_pending_pair,priority:1,where:status = 'pending'" json:"user"`
	ProviderID  string             `gorm:"type:text;not null;index:idx_provider_status,priority:1;uniqueIndex:ux_pending_pair,priority:2,where:status = 'pending'" json:"astrologer"`
	Message     string             `gorm:"type:varchar(500);not null;default:''" json:"message"`
	Status      ConsultationStatus `gorm:"type:text;not null;default:pending;index:idx_requester_status,priority:2;index:idx_provider_status,priority:2" json:"status"`
	RequestedAt time.Time          `gorm:"not null" json:"requestedAt"`
	ExpiresAt   time.Time          `gorm:"not null;index" json:"expiresAt"`
	RespondedAt *time.Time         `json:"respondedAt"`
	CompletedAt *time.Time         `json:"completedAt"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (r *ConsultationRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// IsOverdue reports whether a pending request has outlived its TTL at now.
func (r *ConsultationRequest) IsOverdue(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// Counterpart returns the other party of the request for actorID.
func (r *ConsultationRequest) Counterpart(actorID string) string {
	if actorID == r.ProviderID {
		return r.RequesterID
	}
	return r.ProviderID
}

// ConsultationTransition is the patch applied by a conditional status update.
type ConsultationTransition struct {
	To          ConsultationStatus
	RespondedAt *time.Time
	CompletedAt *time.Time
}
