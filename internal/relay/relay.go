// Package relay persists direct messages and routes them, together with read
// receipts and typing signals, to the connections that should see them.
package relay

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/config"
	"astrochat/backend/internal/metrics"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Store is the part of storage.Storage the relay needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id, senderID string) (bool, error)
	MarkMessagesRead(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error)
	FindConversation(ctx context.Context, userA, userB string, skip, limit int64) ([]models.Message, error)
	CountMessages(ctx context.Context, f storage.MessageFilter) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// Subscriber is a live connection that can join conversation channels.
type Subscriber interface {
	UserID() string
	Send(evt models.Event) bool
}

// Notifier is the push side the relay delivers through.
type Notifier interface {
	Publish(channel string, evt models.Event)
	SendTo(userID string, evt models.Event) bool
	IsSubscribed(userID, channel string) bool
	Subscribe(sub Subscriber, channel string)
	Unsubscribe(sub Subscriber, channel string)
}

type Relay struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(store Store, notifier Notifier, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Relay {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		store:    store,
		notifier: notifier,
		clock:    clk,
		logger:   logger.Named("relay"),
		metrics:  m,
	}
}

// Send persists a message from sender to receiverID and routes it: everyone
// subscribed to the pair's channel gets message:receive, and the receiver gets a
// message:notification when online but not looking at the conversation.
func (r *Relay) Send(ctx context.Context, sender *models.User, receiverID, text string) (*models.MessagePayload, error) {
	text = strings.TrimSpace(text)
	if receiverID == "" || text == "" {
		return nil, apperr.Validation("Receiver ID and message are required")
	}
	if utf8.RuneCountInString(text) > config.MaxMessageLength {
		return nil, apperr.Validation("Message is too long")
	}

	receiver, err := r.resolveUser(ctx, receiverID, "Receiver not found")
	if err != nil {
		return nil, err
	}
	if receiver.ID == sender.ID {
		return nil, apperr.Validation("Cannot send message to yourself")
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Text:       text,
		CreatedAt:  r.clock.Now().UTC(),
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}
	r.metrics.MessageRelayed()

	senderSummary := sender.Summary()
	receiverSummary := receiver.Summary()
	payload := &models.MessagePayload{
		ID:        msg.ID,
		Sender:    senderSummary,
		Receiver:  &receiverSummary,
		Message:   msg.Text,
		IsRead:    msg.IsRead,
		CreatedAt: msg.CreatedAt,
	}

	channel := ChannelID(sender.ID, receiver.ID)
	r.notifier.Publish(channel, models.NewEvent(models.EventMessageReceive, payload))

	if !r.notifier.IsSubscribed(receiver.ID, channel) {
		r.notifier.SendTo(receiver.ID, models.NewEvent(models.EventMessageNotification, models.MessagePayload{
			ID:        msg.ID,
			Sender:    senderSummary,
			Message:   msg.Text,
			CreatedAt: msg.CreatedAt,
		}))
	}

	r.logger.Debug("message relayed",
		zap.String("message_id", msg.ID),
		zap.String("channel", channel))
	return payload, nil
}

// MarkRead marks every unread message senderID sent to reader as read and tells the
// sender, if online, how many were marked.
func (r *Relay) MarkRead(ctx context.Context, reader *models.User, senderID string) (int64, error) {
	if senderID == "" {
		return 0, apperr.Validation("Sender ID is required")
	}

	n, err := r.store.MarkMessagesRead(ctx, senderID, reader.ID, r.clock.Now().UTC())
	if err != nil {
		return 0, apperr.Internal("failed to mark messages as read", err)
	}

	r.notifier.SendTo(senderID, models.NewEvent(models.EventMessageReadReceipt, models.ReadReceiptPayload{
		ReaderID:   reader.ID,
		ReaderName: reader.Name,
		Count:      n,
	}))
	return n, nil
}

// Typing forwards a typing signal to toID. Offline receivers are skipped.
func (r *Relay) Typing(from *models.User, toID string, isTyping bool) {
	if toID == "" || toID == from.ID {
		return
	}
	r.notifier.SendTo(toID, models.NewEvent(models.EventTypingUser, models.TypingPayload{
		UserID:   from.ID,
		Name:     from.Name,
		IsTyping: isTyping,
	}))
}

// Join subscribes sub to the conversation channel between selfID and otherID.
func (r *Relay) Join(sub Subscriber, selfID, otherID string) (string, error) {
	if otherID == "" {
		return "", apperr.Validation("User ID is required")
	}
	channel := ChannelID(selfID, otherID)
	r.notifier.Subscribe(sub, channel)
	return channel, nil
}

func (r *Relay) Leave(sub Subscriber, selfID, otherID string) (string, error) {
	if otherID == "" {
		return "", apperr.Validation("User ID is required")
	}
	channel := ChannelID(selfID, otherID)
	r.notifier.Unsubscribe(sub, channel)
	return channel, nil
}

type ConversationPage struct {
	Messages    []models.Message   `json:"messages"`
	OtherUser   models.UserSummary `json:"otherUser"`
	Pagination  models.Pagination  `json:"pagination"`
	UnreadCount int64              `json:"unreadCount"`
}

// Conversation returns one page of the messages between self and otherID, oldest first.
func (r *Relay) Conversation(ctx context.Context, self *models.User, otherID string, page, limit int) (*ConversationPage, error) {
	other, err := r.resolveUser(ctx, otherID, "User not found")
	if err != nil {
		return nil, err
	}
	page, limit = models.NormalizePage(page, limit, config.DefaultConversationPageSize, config.MaxPageSize)

	msgs, err := r.store.FindConversation(ctx, self.ID, other.ID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	total, err := r.store.CountMessages(ctx, storage.MessageFilter{Between: []string{self.ID, other.ID}})
	if err != nil {
		return nil, apperr.Internal("failed to count messages", err)
	}
	unread, err := r.store.CountMessages(ctx, storage.MessageFilter{SenderID: other.ID, ReceiverID: self.ID, UnreadOnly: true})
	if err != nil {
		return nil, apperr.Internal("failed to count unread messages", err)
	}

	return &ConversationPage{
		Messages:    msgs,
		OtherUser:   other.Summary(),
		Pagination:  models.NewPagination(page, limit, total),
		UnreadCount: unread,
	}, nil
}

// Conversations lists everyone self has exchanged messages with, most recent first.
func (r *Relay) Conversations(ctx context.Context, self *models.User) ([]models.ConversationSummary, error) {
	list, err := r.store.ListConversations(ctx, self.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list conversations", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	users, err := r.store.GetUsersByIDs(ctx, lo.Map(list, func(c models.ConversationSummary, _ int) string {
		return c.CounterpartID
	}))
	if err != nil {
		return nil, apperr.Internal("failed to load conversation users", err)
	}
	byID := lo.KeyBy(users, func(u models.User) string { return u.ID })
	for i := range list {
		if u, ok := byID[list[i].CounterpartID]; ok {
			summary := u.Summary()
			list[i].User = &summary
		}
	}
	return list, nil
}

func (r *Relay) UnreadCount(ctx context.Context, self *models.User) (int64, error) {
	n, err := r.store.CountMessages(ctx, storage.MessageFilter{ReceiverID: self.ID, UnreadOnly: true})
	if err != nil {
		return 0, apperr.Internal("failed to count unread messages", err)
	}
	return n, nil
}

// Delete removes a message. Only its sender may do so.
func (r *Relay) Delete(ctx context.Context, actor *models.User, messageID string) error {
	msg, err := r.store.GetMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("Message not found")
	}
	if err != nil {
		return apperr.Internal("failed to load message", err)
	}
	if msg.SenderID != actor.ID {
		return apperr.Authorization("You can only delete your own messages")
	}

	ok, err := r.store.DeleteMessage(ctx, messageID, actor.ID)
	if err != nil {
		return apperr.Internal("failed to delete message", err)
	}
	if !ok {
		return apperr.NotFound("Message not found")
	}
	return nil
}

func (r *Relay) resolveUser(ctx context.Context, id, notFound string) (*models.User, error) {
	u, err := r.store.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(notFound)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return u, nil
}
