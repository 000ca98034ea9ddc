package models

import (
	"encoding/json"
	"time"
)

// Outbound realtime event names.
const (
	EventUserOnline            = "user:online"
	EventUserOffline           = "user:offline"
	EventUsersActive           = "users:active"
	EventMessageReceive        = "message:receive"
	EventMessageNotification   = "message:notification"
	EventMessageReadReceipt    = "message:read-receipt"
	EventTypingUser            = "typing:user"
	EventConsultationIncoming  = "consultation:incoming"
	EventConsultationAccepted  = "consultation:accepted"
	EventConsultationDeclined  = "consultation:declined"
	EventConsultationCancelled = "consultation:cancelled"
	EventConsultationCompleted = "consultation:completed"
	EventProviderAvailability  = "astrologer:availability"
	EventAck                   = "ack"
)

// InboundFrame is one client -> server frame as it arrives on the socket.
// Ack is the client's correlation id; frames without it get no reply.
type InboundFrame struct {
	Op      string          `json:"op"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one server -> client frame.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Ack is the single reply to an acknowledged inbound frame.
type Ack struct {
	ID      string `json:"ack"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Status  string `json:"status,omitempty"`
}

func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// --- Event payloads ---

type PresencePayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
}

type MessagePayload struct {
	ID        string       `json:"_id"`
	Sender    UserSummary  `json:"sender"`
	Receiver  *UserSummary `json:"receiver,omitempty"`
	Message   string       `json:"message"`
	IsRead    bool         `json:"isRead"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ReadReceiptPayload struct {
	ReaderID   string `json:"readerId"`
	ReaderName string `json:"readerName"`
	Count      int64  `json:"count"`
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

type IncomingConsultationPayload struct {
	RequestID   string      `json:"requestId"`
	User        UserSummary `json:"user"`
	Message     string      `json:"message"`
	RequestedAt time.Time   `json:"requestedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// ConsultationResponsePayload is sent to the requester on accept/decline.
type ConsultationResponsePayload struct {
	RequestID      string `json:"requestId"`
	AstrologerID   string `json:"astrologerId"`
	AstrologerName string `json:"astrologerName"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message"`
}

type ConsultationCancelledPayload struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
}

type ConsultationCompletedPayload struct {
	RequestID       string `json:"requestId"`
	CompletedBy     string `json:"completedBy"`
	CompletedByName string `json:"completedByName"`
	Message         string `json:"message"`
}

type AvailabilityPayload struct {
	AstrologerID string `json:"astrologerId"`
	IsAvailable  bool   `json:"isAvailable"`
	Name         string `json:"name"`
}
