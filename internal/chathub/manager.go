// Package chathub owns realtime connections: it registers them in the presence
// registry, decodes their frames into typed operations, dispatches those to the
// message relay or the consultation broker, and delivers the resulting events.
package chathub

import (
	"context"
	"encoding/json"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/consultation"
	"astrochat/backend/internal/metrics"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/presence"
	"astrochat/backend/internal/relay"

	"go.uber.org/zap"
)

// ManagerService is the realtime hub. It implements relay.Notifier and
// consultation.Notifier, so both services push through it.
type ManagerService struct {
	presence *presence.Registry[Client]
	channels *channelTable

	relay  *relay.Relay
	broker *consultation.Broker

	limiter *SendLimiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var (
	_ relay.Notifier        = (*ManagerService)(nil)
	_ consultation.Notifier = (*ManagerService)(nil)
)

// NewManagerService (relay і broker підключаються пізніше через Attach)
func NewManagerService(limiter *SendLimiter, logger *zap.Logger, m *metrics.Metrics) *ManagerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagerService{
		presence: presence.NewRegistry[Client](),
		channels: newChannelTable(),
		limiter:  limiter,
		logger:   logger.Named("chathub"),
		metrics:  m,
	}
}

// Attach wires the services inbound operations are dispatched to. They take the
// hub as their notifier, hence the two-step construction.
func (m *ManagerService) Attach(r *relay.Relay, b *consultation.Broker) {
	m.relay = r
	m.broker = b
}

// Connect registers c as its identity's live connection, tells everyone else the
// identity is online and sends c the current online list.
func (m *ManagerService) Connect(c Client) {
	user := c.User()
	if _, replaced := m.presence.Register(user.ID, c); replaced {
		m.logger.Info("presence taken over by a newer connection", zap.String("user_id", user.ID))
	}
	m.metrics.ConnectionOpened()

	m.broadcastExcept(c, models.NewEvent(models.EventUserOnline, models.PresencePayload{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}))
	c.Send(models.NewEvent(models.EventUsersActive, m.presence.Snapshot()))

	m.logger.Info("user connected", zap.String("user_id", user.ID), zap.String("role", user.Role))
}

// Disconnect tears c down. The identity goes offline only if c still owned its
// presence entry; a connection that was already replaced leaves no trace.
func (m *ManagerService) Disconnect(c Client) {
	m.channels.leaveAll(c)
	c.Close()
	m.metrics.ConnectionClosed()

	user := c.User()
	if !m.presence.Unregister(user.ID, c) {
		return
	}
	m.Broadcast(models.NewEvent(models.EventUserOffline, models.PresencePayload{
		UserID: user.ID,
		Name:   user.Name,
	}))
	m.logger.Info("user disconnected", zap.String("user_id", user.ID))
}

// HandleFrame decodes one inbound frame from c, runs it and acknowledges it when
// the frame carries an ack id.
func (m *ManagerService) HandleFrame(ctx context.Context, c Client, raw []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.logger.Debug("dropping undecodable frame", zap.String("user_id", c.UserID()), zap.Error(err))
		return
	}

	data, err := m.handle(ctx, c, frame)
	m.metrics.InboundOp(opLabel(frame.Op), resultLabel(err))
	m.reply(c, frame, data, err)
}

func (m *ManagerService) handle(ctx context.Context, c Client, frame models.InboundFrame) (any, error) {
	op, err := decodeOp(frame)
	if err != nil {
		return nil, err
	}
	if rateLimited[op.Name()] && !m.limiter.Allow(c.UserID()) {
		return nil, apperr.Validation("Too many requests, slow down")
	}
	return m.dispatch(ctx, c, op)
}

func (m *ManagerService) dispatch(ctx context.Context, c Client, op Op) (any, error) {
	user := c.User()

	switch op := op.(type) {
	case JoinConversation:
		channel, err := m.relay.Join(c, user.ID, op.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"channel": channel}, nil
	case LeaveConversation:
		channel, err := m.relay.Leave(c, user.ID, op.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"channel": channel}, nil
	case SendMessage:
		return m.relay.Send(ctx, user, op.ReceiverID, op.Message)
	case MarkRead:
		n, err := m.relay.MarkRead(ctx, user, op.SenderID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"count": n}, nil
	case Typing:
		m.relay.Typing(user, op.UserID, op.IsTyping)
		return nil, nil
	case RequestConsultation:
		req, err := m.broker.Create(ctx, user, op.AstrologerID, op.Message)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"requestId": req.ID,
			"expiresAt": req.ExpiresAt,
			"message":   "Consultation request sent successfully",
		}, nil
	case AcceptConsultation:
		return m.broker.Accept(ctx, user, op.RequestID)
	case DeclineConsultation:
		return m.broker.Decline(ctx, user, op.RequestID, op.Reason)
	case CancelConsultation:
		return m.broker.Cancel(ctx, user, op.RequestID)
	case CompleteConsultation:
		return m.broker.Complete(ctx, user, op.RequestID)
	}
	return nil, apperr.Validation("Unsupported operation")
}

// reply sends exactly one ack for frames that asked for one. Failures of
// fire-and-forget frames are only logged.
func (m *ManagerService) reply(c Client, frame models.InboundFrame, data any, err error) {
	if err != nil {
		fields := []zap.Field{
			zap.String("user_id", c.UserID()),
			zap.String("op", frame.Op),
			zap.Error(err),
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			m.logger.Error("operation failed", fields...)
		} else {
			m.logger.Debug("operation rejected", fields...)
		}
	}
	if frame.Ack == "" {
		return
	}

	ack := models.Ack{ID: frame.Ack, Success: err == nil, Data: data}
	if err != nil {
		ack.Data = nil
		ack.Error = apperr.PublicMessage(err)
		ack.Code = string(apperr.KindOf(err))
		ack.Status = apperr.StatusOf(err)
	}
	c.Send(models.NewEvent(models.EventAck, ack))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

// --- Notifier ---

// SendTo delivers evt to userID's live connection, if any.
func (m *ManagerService) SendTo(userID string, evt models.Event) bool {
	c, ok := m.presence.Lookup(userID)
	if !ok {
		return false
	}
	return c.Send(evt)
}

// Publish delivers evt to every connection subscribed to channel.
func (m *ManagerService) Publish(channel string, evt models.Event) {
	for _, sub := range m.channels.subscribers(channel) {
		sub.Send(evt)
	}
}

// Broadcast delivers evt to every live connection.
func (m *ManagerService) Broadcast(evt models.Event) {
	for _, c := range m.presence.Handles() {
		c.Send(evt)
	}
}

func (m *ManagerService) broadcastExcept(except Client, evt models.Event) {
	for _, c := range m.presence.Handles() {
		if c != except {
			c.Send(evt)
		}
	}
}

func (m *ManagerService) IsOnline(userID string) bool {
	return m.presence.IsOnline(userID)
}

// IsSubscribed reports whether userID's current connection joined channel.
func (m *ManagerService) IsSubscribed(userID, channel string) bool {
	c, ok := m.presence.Lookup(userID)
	if !ok {
		return false
	}
	return m.channels.isMember(c, channel)
}

func (m *ManagerService) Subscribe(sub relay.Subscriber, channel string) {
	m.channels.join(sub, channel)
}

func (m *ManagerService) Unsubscribe(sub relay.Subscriber, channel string) {
	m.channels.leave(sub, channel)
}

// OnlineIDs returns the sorted ids of every connected identity.
func (m *ManagerService) OnlineIDs() []string {
	return m.presence.Snapshot()
}

// Shutdown closes every live connection.
func (m *ManagerService) Shutdown(_ context.Context) {
	for _, c := range m.presence.Handles() {
		c.Close()
	}
}
