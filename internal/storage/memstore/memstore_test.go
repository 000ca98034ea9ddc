package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"
	"astrochat/backend/internal/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(requester, provider string, at time.Time) *models.ConsultationRequest {
	return &models.ConsultationRequest{
		RequesterID: requester,
		ProviderID:  provider,
		Status:      models.StatusPending,
		RequestedAt: at,
		ExpiresAt:   at.Add(5 * time.Minute),
	}
}

func TestCreateConsultation_RejectsLivePendingForPair(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateConsultation(ctx, pending("u1", "p1", t0)))

	err := s.CreateConsultation(ctx, pending("u1", "p1", t0.Add(time.Minute)))
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Another provider is a different pair.
	assert.NoError(t, s.CreateConsultation(ctx, pending("u1", "p2", t0.Add(time.Minute))))
}

func TestCreateConsultation_ExpiresOverdueBeforeInsert(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := pending("u1", "p1", t0)
	require.NoError(t, s.CreateConsultation(ctx, first))

	later := t0.Add(6 * time.Minute)
	require.NoError(t, s.CreateConsultation(ctx, pending("u1", "p1", later)))

	old, err := s.GetConsultation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, old.Status)
	require.NotNil(t, old.RespondedAt)
	assert.True(t, old.RespondedAt.Equal(later))
}

func TestCreateConsultation_ConcurrentSinglePending(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	t0 := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CreateConsultation(ctx, pending("u1", "p1", t0)); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestTransitionConsultation_OnlyFromExpectedStatus(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	now := time.Now()
	req := pending("u1", "p1", now)
	require.NoError(t, s.CreateConsultation(ctx, req))

	ok, err := s.TransitionConsultation(ctx, req.ID, models.StatusPending, models.ConsultationTransition{To: models.StatusAccepted, RespondedAt: &now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionConsultation(ctx, req.ID, models.StatusPending, models.ConsultationTransition{To: models.StatusDeclined, RespondedAt: &now})
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.GetConsultation(ctx, req.ID)
	assert.Equal(t, models.StatusAccepted, got.Status)
}

func TestMessages_ConversationAndRead(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, m := range []models.Message{
		{SenderID: "a", ReceiverID: "b", Text: "hi", CreatedAt: t0},
		{SenderID: "b", ReceiverID: "a", Text: "hey", CreatedAt: t0.Add(time.Second)},
		{SenderID: "a", ReceiverID: "b", Text: "how are you", CreatedAt: t0.Add(2 * time.Second)},
		{SenderID: "c", ReceiverID: "b", Text: "unrelated", CreatedAt: t0.Add(3 * time.Second)},
	} {
		msg := m
		require.NoError(t, s.CreateMessage(ctx, &msg), "message %d", i)
	}

	conv, err := s.FindConversation(ctx, "b", "a", 0, 0)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "hi", conv[0].Text)
	assert.Equal(t, "how are you", conv[2].Text)

	n, err := s.MarkMessagesRead(ctx, "a", "b", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.MarkMessagesRead(ctx, "a", "b", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err := s.CountMessages(ctx, storage.MessageFilter{ReceiverID: "b", UnreadOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	list, err := s.ListConversations(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].CounterpartID)
	assert.EqualValues(t, 1, list[0].UnreadCount)
	assert.Equal(t, "a", list[1].CounterpartID)
	assert.Equal(t, "how are you", list[1].LastMessage)
	assert.False(t, list[1].IsSentByMe)
}

func TestDeleteMessage_SenderOnly(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	msg := &models.Message{SenderID: "a", ReceiverID: "b", Text: "x", CreatedAt: time.Now()}
	require.NoError(t, s.CreateMessage(ctx, msg))

	ok, err := s.DeleteMessage(ctx, msg.ID, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteMessage(ctx, msg.ID, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAcquireLease(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := memstore.New().WithNow(func() time.Time { return now })
	ctx := context.Background()

	ok, _ := s.AcquireLease(ctx, "k", "a", time.Minute)
	assert.True(t, ok)
	ok, _ = s.AcquireLease(ctx, "k", "b", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = s.AcquireLease(ctx, "k", "b", time.Minute)
	assert.True(t, ok)
}
