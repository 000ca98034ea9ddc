package chathub_test

import (
	"sync"

	"astrochat/backend/internal/models"
)

type MockClient struct {
	user *models.User

	mu     sync.Mutex
	events []models.Event
	closed bool
}

func newMockClient(id, name, role string) *MockClient {
	return &MockClient{user: &models.User{ID: id, Name: name, Role: role, IsAvailable: true}}
}

func (c *MockClient) UserID() string     { return c.user.ID }
func (c *MockClient) User() *models.User { return c.user }

func (c *MockClient) Send(evt models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, evt)
	return true
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Events returns the events named name, in delivery order.
func (c *MockClient) Events(name string) []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Event
	for _, e := range c.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// LastAck returns the most recent ack delivered to the client.
func (c *MockClient) LastAck() (models.Ack, bool) {
	acks := c.Events(models.EventAck)
	if len(acks) == 0 {
		return models.Ack{}, false
	}
	return acks[len(acks)-1].Data.(models.Ack), true
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
