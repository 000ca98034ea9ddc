// Package consultation implements the consultation request state machine:
//
//	pending -> accepted | declined | cancelled | expired
//	accepted -> completed
//
// Every transition is a conditional update on (id, expected status), so concurrent
// callers race safely and exactly one of them wins. Overdue pending requests are
// expired lazily by any state-dependent call and in bulk by Sweep.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/config"
	"astrochat/backend/internal/metrics"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Store is the part of storage.Storage the broker needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SetUserAvailability(ctx context.Context, id string, available bool) (*models.User, error)
	ToggleUserAvailability(ctx context.Context, id string) (*models.User, error)

	CreateConsultation(ctx context.Context, req *models.ConsultationRequest) error
	GetConsultation(ctx context.Context, id string) (*models.ConsultationRequest, error)
	TransitionConsultation(ctx context.Context, id string, from models.ConsultationStatus, t models.ConsultationTransition) (bool, error)
	ExpireOverdueConsultations(ctx context.Context, now time.Time) (int64, error)
	FindConsultations(ctx context.Context, f storage.ConsultationFilter) ([]models.ConsultationRequest, error)
	CountConsultations(ctx context.Context, f storage.ConsultationFilter) (int64, error)
}

// Notifier pushes events to connected identities.
type Notifier interface {
	SendTo(userID string, evt models.Event) bool
	Broadcast(evt models.Event)
	OnlineIDs() []string
}

// NopNotifier drops every event. It serves callers with no live connections,
// such as the operator CLI.
type NopNotifier struct{}

func (NopNotifier) SendTo(string, models.Event) bool { return false }
func (NopNotifier) Broadcast(models.Event)           {}
func (NopNotifier) OnlineIDs() []string              { return nil }

type Broker struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewBroker(store Store, notifier Notifier, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Broker {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		store:    store,
		notifier: notifier,
		clock:    clk,
		ttl:      config.ConsultationTTL,
		logger:   logger.Named("consultation"),
		metrics:  m,
	}
}

// Outcome is the result of a successful transition.
type Outcome struct {
	Request *models.ConsultationRequest `json:"request"`
	User    *models.UserSummary         `json:"user,omitempty"`
	Message string                      `json:"message"`
}

// Create opens a pending request from requester to providerID that expires after the TTL.
func (b *Broker) Create(ctx context.Context, requester *models.User, providerID, note string) (*models.ConsultationRequest, error) {
	if providerID == "" {
		return nil, apperr.Validation("Astrologer ID is required")
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > config.MaxConsultationNoteLength {
		return nil, apperr.Validation("Message is too long")
	}

	provider, err := b.resolveUser(ctx, providerID, "Astrologer not found")
	if err != nil {
		return nil, err
	}
	if !provider.IsProvider() {
		return nil, apperr.Validation("User is not an astrologer")
	}
	if provider.ID == requester.ID {
		return nil, apperr.Validation("Cannot request consultation with yourself")
	}

	now := b.now()
	req := &models.ConsultationRequest{
		RequesterID: requester.ID,
		ProviderID:  provider.ID,
		Message:     note,
		Status:      models.StatusPending,
		RequestedAt: now,
		ExpiresAt:   now.Add(b.ttl),
	}
	err = b.store.CreateConsultation(ctx, req)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.StateConflict("You already have a pending request with this astrologer", string(models.StatusPending))
	}
	if err != nil {
		return nil, apperr.Internal("failed to create consultation request", err)
	}
	b.metrics.Transition(string(models.StatusPending))

	if b.notifier.SendTo(provider.ID, models.NewEvent(models.EventConsultationIncoming, models.IncomingConsultationPayload{
		RequestID:   req.ID,
		User:        requester.Summary(),
		Message:     req.Message,
		RequestedAt: req.RequestedAt,
		ExpiresAt:   req.ExpiresAt,
	})) {
		b.logger.Info("consultation request delivered",
			zap.String("request_id", req.ID),
			zap.String("requester", requester.ID),
			zap.String("provider", provider.ID))
	}
	return req, nil
}

// Accept moves a pending request to accepted. Only the addressed provider may accept.
func (b *Broker) Accept(ctx context.Context, provider *models.User, requestID string) (*Outcome, error) {
	req, err := b.loadPending(ctx, requestID, func(r *models.ConsultationRequest) bool {
		return r.ProviderID == provider.ID
	}, "You are not authorized to accept this request")
	if err != nil {
		return nil, err
	}

	now := b.now()
	if err := b.transition(ctx, req, models.StatusPending, models.ConsultationTransition{
		To:          models.StatusAccepted,
		RespondedAt: &now,
	}); err != nil {
		return nil, err
	}

	b.notifier.SendTo(req.RequesterID, models.NewEvent(models.EventConsultationAccepted, models.ConsultationResponsePayload{
		RequestID:      req.ID,
		AstrologerID:   provider.ID,
		AstrologerName: provider.Name,
		Message:        fmt.Sprintf("%s accepted your consultation request", provider.Name),
	}))

	out := &Outcome{Request: req, Message: "Consultation request accepted"}
	if requester, err := b.store.GetUserByID(ctx, req.RequesterID); err == nil {
		summary := requester.Summary()
		out.User = &summary
	}
	return out, nil
}

// Decline moves a pending request to declined. An empty reason gets the default one.
func (b *Broker) Decline(ctx context.Context, provider *models.User, requestID, reason string) (*Outcome, error) {
	req, err := b.loadPending(ctx, requestID, func(r *models.ConsultationRequest) bool {
		return r.ProviderID == provider.ID
	}, "You are not authorized to decline this request")
	if err != nil {
		return nil, err
	}

	now := b.now()
	if err := b.transition(ctx, req, models.StatusPending, models.ConsultationTransition{
		To:          models.StatusDeclined,
		RespondedAt: &now,
	}); err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		reason = config.DefaultDeclineReason
	}
	b.notifier.SendTo(req.RequesterID, models.NewEvent(models.EventConsultationDeclined, models.ConsultationResponsePayload{
		RequestID:      req.ID,
		AstrologerID:   provider.ID,
		AstrologerName: provider.Name,
		Reason:         reason,
		Message:        fmt.Sprintf("%s declined your consultation request", provider.Name),
	}))
	return &Outcome{Request: req, Message: "Consultation request declined"}, nil
}

// Cancel withdraws a pending request. Only its requester may cancel.
func (b *Broker) Cancel(ctx context.Context, requester *models.User, requestID string) (*Outcome, error) {
	req, err := b.loadPending(ctx, requestID, func(r *models.ConsultationRequest) bool {
		return r.RequesterID == requester.ID
	}, "You are not authorized to cancel this request")
	if err != nil {
		return nil, err
	}

	now := b.now()
	if err := b.transition(ctx, req, models.StatusPending, models.ConsultationTransition{
		To:          models.StatusCancelled,
		RespondedAt: &now,
	}); err != nil {
		return nil, err
	}

	b.notifier.SendTo(req.ProviderID, models.NewEvent(models.EventConsultationCancelled, models.ConsultationCancelledPayload{
		RequestID: req.ID,
		UserID:    requester.ID,
		UserName:  requester.Name,
		Message:   fmt.Sprintf("%s cancelled their consultation request", requester.Name),
	}))
	return &Outcome{Request: req, Message: "Consultation request cancelled"}, nil
}

// Complete ends an accepted consultation. Either party may complete it.
func (b *Broker) Complete(ctx context.Context, actor *models.User, requestID string) (*Outcome, error) {
	req, err := b.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != req.ProviderID && actor.ID != req.RequesterID {
		return nil, apperr.Authorization("You are not authorized to complete this consultation")
	}
	if req.Status != models.StatusAccepted {
		return nil, apperr.StateConflict(fmt.Sprintf("Cannot complete %s consultation", req.Status), string(req.Status))
	}

	now := b.now()
	if err := b.transition(ctx, req, models.StatusAccepted, models.ConsultationTransition{
		To:          models.StatusCompleted,
		CompletedAt: &now,
	}); err != nil {
		return nil, err
	}

	b.notifier.SendTo(req.Counterpart(actor.ID), models.NewEvent(models.EventConsultationCompleted, models.ConsultationCompletedPayload{
		RequestID:       req.ID,
		CompletedBy:     actor.ID,
		CompletedByName: actor.Name,
		Message:         fmt.Sprintf("%s has ended the consultation", actor.Name),
	}))
	b.logger.Info("consultation completed",
		zap.String("request_id", req.ID),
		zap.String("completed_by", actor.ID))
	return &Outcome{Request: req, Message: "Consultation completed successfully"}, nil
}

// Sweep expires every pending request whose expiresAt is before now. Running it
// again without new overdue requests expires nothing.
func (b *Broker) Sweep(ctx context.Context) (int64, error) {
	n, err := b.store.ExpireOverdueConsultations(ctx, b.now())
	if err != nil {
		return 0, apperr.Internal("failed to expire consultation requests", err)
	}
	b.metrics.Swept(n)
	if n > 0 {
		b.logger.Info("expired overdue consultation requests", zap.Int64("count", n))
	}
	return n, nil
}

func (b *Broker) now() time.Time {
	return b.clock.Now().UTC()
}

func (b *Broker) load(ctx context.Context, requestID string) (*models.ConsultationRequest, error) {
	if requestID == "" {
		return nil, apperr.Validation("Request ID is required")
	}
	req, err := b.store.GetConsultation(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load consultation request", err)
	}
	return req, nil
}

// loadPending loads a request the caller may act on and which is still pending and
// not overdue. An overdue request is expired on the spot.
func (b *Broker) loadPending(ctx context.Context, requestID string, allowed func(*models.ConsultationRequest) bool, denied string) (*models.ConsultationRequest, error) {
	req, err := b.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !allowed(req) {
		return nil, apperr.Authorization(denied)
	}
	if req.Status != models.StatusPending {
		return nil, alreadyIn(req.Status)
	}

	now := b.now()
	if req.IsOverdue(now) {
		if err := b.transition(ctx, req, models.StatusPending, models.ConsultationTransition{
			To:          models.StatusExpired,
			RespondedAt: &now,
		}); err != nil {
			return nil, err
		}
		return nil, apperr.StateConflict("Request has expired", string(models.StatusExpired))
	}
	return req, nil
}

// transition applies t if req is still in from and updates req in place. Losing the
// race is reported as a state conflict carrying whatever status won.
func (b *Broker) transition(ctx context.Context, req *models.ConsultationRequest, from models.ConsultationStatus, t models.ConsultationTransition) error {
	ok, err := b.store.TransitionConsultation(ctx, req.ID, from, t)
	if err != nil {
		return apperr.Internal("failed to update consultation request", err)
	}
	if !ok {
		current, err := b.load(ctx, req.ID)
		if err != nil {
			return err
		}
		return alreadyIn(current.Status)
	}

	req.Status = t.To
	if t.RespondedAt != nil {
		req.RespondedAt = t.RespondedAt
		req.UpdatedAt = *t.RespondedAt
	}
	if t.CompletedAt != nil {
		req.CompletedAt = t.CompletedAt
		req.UpdatedAt = *t.CompletedAt
	}
	b.metrics.Transition(string(t.To))
	return nil
}

func alreadyIn(status models.ConsultationStatus) error {
	return apperr.StateConflict(fmt.Sprintf("Request is already %s", status), string(status))
}

func (b *Broker) resolveUser(ctx context.Context, id, notFound string) (*models.User, error) {
	u, err := b.store.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(notFound)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return u, nil
}
