// Package memstore is an in-memory storage.Storage for tests and single-process runs.
// A single mutex serializes every call, which gives creates and transitions the same
// compare-and-set semantics the SQL store gets from conditional updates.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.Mutex
	users         map[string]models.User
	consultations map[string]models.ConsultationRequest
	messages      map[string]models.Message
	leases        map[string]time.Time
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[string]models.User),
		consultations: make(map[string]models.ConsultationRequest),
		messages:      make(map[string]models.Message),
		leases:        make(map[string]time.Time),
		now:           time.Now,
	}
}

// WithNow overrides the clock used for lease expiry.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

var _ storage.Storage = (*Store)(nil)

// PutUser inserts or replaces a user. The account service owns users in production,
// so this exists for seeding.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users[u.ID] = u
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SetUserAvailability(_ context.Context, id string, available bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.IsAvailable = available
	u.UpdatedAt = s.now()
	s.users[id] = u
	return &u, nil
}

func (s *Store) ToggleUserAvailability(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.IsAvailable = !u.IsAvailable
	u.UpdatedAt = s.now()
	s.users[id] = u
	return &u, nil
}

func (s *Store) CreateConsultation(_ context.Context, req *models.ConsultationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.consultations {
		if existing.RequesterID != req.RequesterID || existing.ProviderID != req.ProviderID || existing.Status != models.StatusPending {
			continue
		}
		if existing.ExpiresAt.Before(req.RequestedAt) {
			at := req.RequestedAt
			existing.Status = models.StatusExpired
			existing.RespondedAt = &at
			existing.UpdatedAt = at
			s.consultations[id] = existing
			continue
		}
		return storage.ErrConflict
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if _, dup := s.consultations[req.ID]; dup {
		return storage.ErrConflict
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	req.CreatedAt = req.RequestedAt
	req.UpdatedAt = req.RequestedAt
	s.consultations[req.ID] = *req
	return nil
}

func (s *Store) GetConsultation(_ context.Context, id string) (*models.ConsultationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.consultations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) TransitionConsultation(_ context.Context, id string, from models.ConsultationStatus, t models.ConsultationTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.consultations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = t.To
	if t.RespondedAt != nil {
		at := *t.RespondedAt
		r.RespondedAt = &at
		r.UpdatedAt = at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		r.CompletedAt = &at
		r.UpdatedAt = at
	}
	s.consultations[id] = r
	return true, nil
}

func (s *Store) ExpireOverdueConsultations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.consultations {
		if r.Status == models.StatusPending && r.ExpiresAt.Before(now) {
			at := now
			r.Status = models.StatusExpired
			r.RespondedAt = &at
			r.UpdatedAt = at
			s.consultations[id] = r
			n++
		}
	}
	return n, nil
}

func (s *Store) FindConsultations(_ context.Context, f storage.ConsultationFilter) ([]models.ConsultationRequest, error) {
	s.mu.Lock()
	matched := s.matchConsultations(f)
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})
	return page(matched, f.Skip, f.Limit), nil
}

func (s *Store) CountConsultations(_ context.Context, f storage.ConsultationFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchConsultations(f))), nil
}

func (s *Store) matchConsultations(f storage.ConsultationFilter) []models.ConsultationRequest {
	out := []models.ConsultationRequest{}
	for _, r := range s.consultations {
		if f.Matches(&r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if _, dup := s.messages[msg.ID]; dup {
		return storage.ErrConflict
	}
	s.messages[msg.ID] = *msg
	return nil
}

func (s *Store) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (s *Store) DeleteMessage(_ context.Context, id, senderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	delete(s.messages, id)
	return true, nil
}

func (s *Store) MarkMessagesRead(_ context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			readAt := at
			m.IsRead = true
			m.ReadAt = &readAt
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *Store) FindConversation(_ context.Context, userA, userB string, skip, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	out := s.matchMessages(storage.MessageFilter{Between: []string{userA, userB}})
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, int(skip), int(limit)), nil
}

func (s *Store) CountMessages(_ context.Context, f storage.MessageFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchMessages(f))), nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCounterpart := make(map[string]*models.ConversationSummary)
	for _, m := range s.messages {
		var other string
		switch userID {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		sum, ok := byCounterpart[other]
		if !ok {
			sum = &models.ConversationSummary{CounterpartID: other}
			byCounterpart[other] = sum
		}
		if !ok || m.CreatedAt.After(sum.LastMessageTime) {
			sum.LastMessage = m.Text
			sum.LastMessageTime = m.CreatedAt
			sum.LastSenderID = m.SenderID
			sum.IsSentByMe = m.SenderID == userID
		}
		if m.ReceiverID == userID && !m.IsRead {
			sum.UnreadCount++
		}
	}

	out := make([]models.ConversationSummary, 0, len(byCounterpart))
	for _, sum := range byCounterpart {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (s *Store) matchMessages(f storage.MessageFilter) []models.Message {
	out := []models.Message{}
	for _, m := range s.messages {
		if f.Matches(&m) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) AcquireLease(_ context.Context, key, _ string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if until, held := s.leases[key]; held && now.Before(until) {
		return false, nil
	}
	s.leases[key] = now.Add(ttl)
	return true, nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
