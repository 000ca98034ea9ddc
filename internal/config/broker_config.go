package config

import "time"

const (
	// Consultation
	ConsultationTTL           = 5 * time.Minute
	MaxConsultationNoteLength = 500
	DefaultDeclineReason      = "Astrologer is currently unavailable"
	PendingListLimit          = 20
	RequesterListLimit        = 10
	RequesterListWindow       = 24 * time.Hour
	DefaultHistoryPageSize    = 20

	// Messaging
	MaxMessageLength            = 2000
	DefaultConversationPageSize = 50
	MaxPageSize                 = 100

	// Sweeper
	SweepLeaseKey = "consultation:sweep:lease"
)
