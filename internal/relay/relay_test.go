package relay_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/relay"
	"astrochat/backend/internal/storage/memstore"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string
	evt models.Event
}

// fakeNotifier records deliveries and keeps a tiny online/subscription model.
type fakeNotifier struct {
	mu        sync.Mutex
	online    map[string]bool
	subs      map[string]map[string]bool // channel -> userID
	published []sent
	direct    []sent
}

func newFakeNotifier(online ...string) *fakeNotifier {
	n := &fakeNotifier{online: map[string]bool{}, subs: map[string]map[string]bool{}}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (n *fakeNotifier) Publish(channel string, evt models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, sent{to: channel, evt: evt})
}

func (n *fakeNotifier) SendTo(userID string, evt models.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.direct = append(n.direct, sent{to: userID, evt: evt})
	return true
}

func (n *fakeNotifier) IsSubscribed(userID, channel string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subs[channel][userID]
}

func (n *fakeNotifier) Subscribe(sub relay.Subscriber, channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[channel] == nil {
		n.subs[channel] = map[string]bool{}
	}
	n.subs[channel][sub.UserID()] = true
}

func (n *fakeNotifier) Unsubscribe(sub relay.Subscriber, channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs[channel], sub.UserID())
}

func (n *fakeNotifier) directTo(userID string) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, s := range n.direct {
		if s.to == userID {
			out = append(out, s.evt)
		}
	}
	return out
}

type sub struct{ id string }

func (s sub) UserID() string           { return s.id }
func (s sub) Send(_ models.Event) bool { return true }

type fixture struct {
	store    *memstore.Store
	notifier *fakeNotifier
	clock    *clock.Mock
	relay    *relay.Relay
	alice    *models.User
	bob      *models.User
}

func setup(t *testing.T, online ...string) *fixture {
	t.Helper()
	store := memstore.New()
	alice := models.User{ID: "alice", Name: "Alice", Role: models.RoleRequester}
	bob := models.User{ID: "bob", Name: "Bob", Role: models.RoleProvider}
	store.PutUser(alice)
	store.PutUser(bob)

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	n := newFakeNotifier(online...)
	return &fixture{
		store:    store,
		notifier: n,
		clock:    clk,
		relay:    relay.New(store, n, clk, nil, nil),
		alice:    &alice,
		bob:      &bob,
	}
}

func TestChannelID_Symmetric(t *testing.T) {
	pairs := [][2]string{{"a", "b"}, {"64f0c2", "64f0c1"}, {"x", "x"}, {"", "z"}}
	for _, p := range pairs {
		assert.Equal(t, relay.ChannelID(p[0], p[1]), relay.ChannelID(p[1], p[0]))
	}
	assert.Equal(t, "a_b", relay.ChannelID("b", "a"))
}

func TestSend_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.relay.Send(ctx, f.alice, "bob", "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.relay.Send(ctx, f.alice, "", "hi")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.relay.Send(ctx, f.alice, "bob", strings.Repeat("я", 2001))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.relay.Send(ctx, f.alice, "ghost", "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.relay.Send(ctx, f.alice, "alice", "hi")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.relay.Send(ctx, f.alice, "bob", strings.Repeat("я", 2000))
	assert.NoError(t, err)
}

// Scenario: receiver online but not in the conversation gets a notification;
// once joined, only the channel event is emitted.
func TestSend_NotificationUnlessSubscribed(t *testing.T) {
	f := setup(t, "alice", "bob")
	ctx := context.Background()

	msg, err := f.relay.Send(ctx, f.alice, "bob", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)
	assert.False(t, msg.IsRead)

	require.Len(t, f.notifier.published, 1)
	assert.Equal(t, "alice_bob", f.notifier.published[0].to)
	assert.Equal(t, models.EventMessageReceive, f.notifier.published[0].evt.Name)

	notes := f.notifier.directTo("bob")
	require.Len(t, notes, 1)
	assert.Equal(t, models.EventMessageNotification, notes[0].Name)

	_, err = f.relay.Join(sub{"bob"}, "bob", "alice")
	require.NoError(t, err)

	_, err = f.relay.Send(ctx, f.alice, "bob", "again")
	require.NoError(t, err)
	assert.Len(t, f.notifier.published, 2)
	assert.Len(t, f.notifier.directTo("bob"), 1)
}

func TestMarkRead_MonotonicAndReceipt(t *testing.T) {
	f := setup(t, "alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.relay.Send(ctx, f.alice, "bob", "m")
		require.NoError(t, err)
	}
	_, err := f.relay.Send(ctx, f.bob, "alice", "reply")
	require.NoError(t, err)

	n, err := f.relay.MarkRead(ctx, f.bob, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	receipts := f.notifier.directTo("alice")
	var last models.Event
	for _, e := range receipts {
		if e.Name == models.EventMessageReadReceipt {
			last = e
		}
	}
	require.Equal(t, models.EventMessageReadReceipt, last.Name)
	assert.Equal(t, models.ReadReceiptPayload{ReaderID: "bob", ReaderName: "Bob", Count: 3}, last.Data)

	n, err = f.relay.MarkRead(ctx, f.bob, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)

	// bob's reply to alice stays unread.
	unread, err := f.relay.UnreadCount(ctx, f.alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func TestTyping_DroppedWhenOffline(t *testing.T) {
	f := setup(t)
	f.relay.Typing(f.alice, "bob", true)
	assert.Empty(t, f.notifier.directTo("bob"))

	f.notifier.online["bob"] = true
	f.relay.Typing(f.alice, "bob", true)
	evts := f.notifier.directTo("bob")
	require.Len(t, evts, 1)
	assert.Equal(t, models.TypingPayload{UserID: "alice", Name: "Alice", IsTyping: true}, evts[0].Data)
}

func TestConversation_PagesOldestFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.relay.Send(ctx, f.alice, "bob", text)
		require.NoError(t, err)
		f.clock.Add(time.Second)
	}

	page, err := f.relay.Conversation(ctx, f.bob, "alice", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "three", page.Messages[0].Text)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.EqualValues(t, 3, page.UnreadCount)
	assert.Equal(t, "Alice", page.OtherUser.Name)

	_, err = f.relay.Conversation(ctx, f.bob, "ghost", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConversation_HugePageIsEmptyNotFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.relay.Send(ctx, f.alice, "bob", "one")
	require.NoError(t, err)

	page, err := f.relay.Conversation(ctx, f.bob, "alice", math.MaxInt, 100)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, models.MaxPage, page.Pagination.CurrentPage)
}

func TestConversations_FillsCounterpart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.relay.Send(ctx, f.alice, "bob", "hi")
	require.NoError(t, err)

	list, err := f.relay.Conversations(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].User)
	assert.Equal(t, "Alice", list[0].User.Name)
	assert.EqualValues(t, 1, list[0].UnreadCount)
	assert.False(t, list[0].IsSentByMe)
}

func TestDelete_SenderOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	msg, err := f.relay.Send(ctx, f.alice, "bob", "oops")
	require.NoError(t, err)

	assert.ErrorIs(t, f.relay.Delete(ctx, f.bob, msg.ID), apperr.ErrAuthorization)
	assert.NoError(t, f.relay.Delete(ctx, f.alice, msg.ID))
	assert.ErrorIs(t, f.relay.Delete(ctx, f.alice, msg.ID), apperr.ErrNotFound)
}
