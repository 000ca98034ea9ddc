package models

import "time"

// Message is a direct message between two identities.
// It is immutable after creation except for the unread -> read transition.
type Message struct {
	ID         string     `bson:"_id" json:"_id"`
	SenderID   string     `bson:"sender_id" json:"sender"`
	ReceiverID string     `bson:"receiver_id" json:"receiver"`
	Text       string     `bson:"message" json:"message"`
	IsRead     bool       `bson:"is_read" json:"isRead"`
	ReadAt     *time.Time `bson:"read_at" json:"readAt"`
	CreatedAt  time.Time  `bson:"created_at" json:"createdAt"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	CounterpartID   string       `bson:"_id" json:"userId"`
	LastMessage     string       `bson:"last_message" json:"lastMessage"`
	LastMessageTime time.Time    `bson:"last_message_time" json:"lastMessageTime"`
	LastSenderID    string       `bson:"last_sender" json:"-"`
	UnreadCount     int64        `bson:"unread_count" json:"unreadCount"`
	IsSentByMe      bool         `bson:"-" json:"isSentByMe"`
	User            *UserSummary `bson:"-" json:"user,omitempty"`
}
