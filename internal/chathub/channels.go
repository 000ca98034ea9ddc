package chathub

import (
	"sync"

	"astrochat/backend/internal/relay"
)

// channelTable tracks which connections joined which conversation channel.
type channelTable struct {
	mu      sync.RWMutex
	members map[string]map[relay.Subscriber]struct{}
	joined  map[relay.Subscriber]map[string]struct{}
}

func newChannelTable() *channelTable {
	return &channelTable{
		members: make(map[string]map[relay.Subscriber]struct{}),
		joined:  make(map[relay.Subscriber]map[string]struct{}),
	}
}

func (t *channelTable) join(sub relay.Subscriber, channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.members[channel] == nil {
		t.members[channel] = make(map[relay.Subscriber]struct{})
	}
	t.members[channel][sub] = struct{}{}
	if t.joined[sub] == nil {
		t.joined[sub] = make(map[string]struct{})
	}
	t.joined[sub][channel] = struct{}{}
}

func (t *channelTable) leave(sub relay.Subscriber, channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(sub, channel)
}

// leaveAll drops every subscription sub holds.
func (t *channelTable) leaveAll(sub relay.Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for channel := range t.joined[sub] {
		t.removeLocked(sub, channel)
	}
	delete(t.joined, sub)
}

func (t *channelTable) removeLocked(sub relay.Subscriber, channel string) {
	if m := t.members[channel]; m != nil {
		delete(m, sub)
		if len(m) == 0 {
			delete(t.members, channel)
		}
	}
	if j := t.joined[sub]; j != nil {
		delete(j, channel)
		if len(j) == 0 {
			delete(t.joined, sub)
		}
	}
}

func (t *channelTable) isMember(sub relay.Subscriber, channel string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[channel][sub]
	return ok
}

// subscribers returns a copy of channel's members for delivery outside the lock.
func (t *channelTable) subscribers(channel string) []relay.Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]relay.Subscriber, 0, len(t.members[channel]))
	for sub := range t.members[channel] {
		out = append(out, sub)
	}
	return out
}
