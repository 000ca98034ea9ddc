package chathub

import "astrochat/backend/internal/models"

// Client is one live realtime connection of an authenticated identity.
// It abstracts the transport so the hub can be exercised without sockets.
type Client interface {
	// UserID returns the identity the connection authenticated as.
	UserID() string
	// User returns the resolved identity record.
	User() *models.User

	// Send queues evt for delivery. It never blocks: when the outbound buffer is
	// full, or the client is closed, the event is dropped and false is returned.
	Send(evt models.Event) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the write pump. Safe to call more than once.
	Close()
}
