package consultation

import (
	"context"
	"math"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/config"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/samber/lo"
)

// RequestView is a consultation request with the other party's public profile attached.
type RequestView struct {
	models.ConsultationRequest
	Requester *models.UserSummary `json:"requester,omitempty"`
	Provider  *models.UserSummary `json:"provider,omitempty"`
}

type HistoryPage struct {
	Requests   []RequestView     `json:"requests"`
	Pagination models.Pagination `json:"pagination"`
}

type StatusView struct {
	CanRequest         bool                        `json:"canRequest"`
	HasPending         bool                        `json:"hasPending"`
	HasActive          bool                        `json:"hasActive"`
	PendingRequest     *models.ConsultationRequest `json:"pendingRequest"`
	ActiveConsultation *models.ConsultationRequest `json:"activeConsultation"`
}

type Stats struct {
	TotalRequests    int64   `json:"totalRequests"`
	AcceptedRequests int64   `json:"acceptedRequests"`
	DeclinedRequests int64   `json:"declinedRequests"`
	PendingRequests  int64   `json:"pendingRequests"`
	TodayRequests    int64   `json:"todayRequests"`
	TodayAccepted    int64   `json:"todayAccepted"`
	AcceptanceRate   float64 `json:"acceptanceRate"`
}

// ListPending returns the provider's live pending requests, newest first.
func (b *Broker) ListPending(ctx context.Context, provider *models.User) ([]RequestView, error) {
	if !provider.IsProvider() {
		return nil, apperr.Authorization("Only astrologers can access this")
	}
	now := b.now()
	reqs, err := b.store.FindConsultations(ctx, storage.ConsultationFilter{
		ProviderID:  provider.ID,
		Statuses:    []models.ConsultationStatus{models.StatusPending},
		UnexpiredAt: &now,
		Limit:       config.PendingListLimit,
	})
	if err != nil {
		return nil, apperr.Internal("failed to list pending requests", err)
	}
	return b.views(ctx, reqs)
}

// History pages through the provider's requests that left pending. A status outside
// the history set is ignored.
func (b *Broker) History(ctx context.Context, provider *models.User, status string, page, limit int) (*HistoryPage, error) {
	if !provider.IsProvider() {
		return nil, apperr.Authorization("Only astrologers can access this")
	}
	page, limit = models.NormalizePage(page, limit, config.DefaultHistoryPageSize, config.MaxPageSize)

	f := storage.ConsultationFilter{ProviderID: provider.ID, Statuses: models.HistoryStatuses}
	if s := models.ConsultationStatus(status); lo.Contains(models.HistoryStatuses, s) {
		f.Statuses = []models.ConsultationStatus{s}
	}

	total, err := b.store.CountConsultations(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to count requests", err)
	}
	f.Skip = (page - 1) * limit
	f.Limit = limit
	reqs, err := b.store.FindConsultations(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to load request history", err)
	}
	views, err := b.views(ctx, reqs)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Requests: views, Pagination: models.NewPagination(page, limit, total)}, nil
}

// ListForRequester returns the requester's pending requests plus anything requested
// in the last day, newest first.
func (b *Broker) ListForRequester(ctx context.Context, requester *models.User) ([]RequestView, error) {
	since := b.now().Add(-config.RequesterListWindow)
	reqs, err := b.store.FindConsultations(ctx, storage.ConsultationFilter{
		RequesterID:             requester.ID,
		PendingOrRequestedSince: &since,
		Limit:                   config.RequesterListLimit,
	})
	if err != nil {
		return nil, apperr.Internal("failed to list requests", err)
	}
	return b.views(ctx, reqs)
}

// Status tells a requester whether a new request to providerID would be accepted.
func (b *Broker) Status(ctx context.Context, requester *models.User, providerID string) (*StatusView, error) {
	provider, err := b.resolveUser(ctx, providerID, "Astrologer not found")
	if err != nil {
		return nil, err
	}
	if !provider.IsProvider() {
		return nil, apperr.Validation("User is not an astrologer")
	}

	now := b.now()
	pending, err := b.store.FindConsultations(ctx, storage.ConsultationFilter{
		RequesterID: requester.ID,
		ProviderID:  provider.ID,
		Statuses:    []models.ConsultationStatus{models.StatusPending},
		UnexpiredAt: &now,
		Limit:       1,
	})
	if err != nil {
		return nil, apperr.Internal("failed to check pending request", err)
	}
	active, err := b.store.FindConsultations(ctx, storage.ConsultationFilter{
		RequesterID: requester.ID,
		ProviderID:  provider.ID,
		Statuses:    []models.ConsultationStatus{models.StatusAccepted},
		Limit:       1,
	})
	if err != nil {
		return nil, apperr.Internal("failed to check active consultation", err)
	}

	view := &StatusView{HasPending: len(pending) > 0, HasActive: len(active) > 0}
	if view.HasPending {
		view.PendingRequest = &pending[0]
	}
	if view.HasActive {
		view.ActiveConsultation = &active[0]
	}
	view.CanRequest = !view.HasPending && !view.HasActive
	return view, nil
}

// Stats summarizes a provider's requests. "Today" starts at UTC midnight.
func (b *Broker) Stats(ctx context.Context, provider *models.User) (*Stats, error) {
	if !provider.IsProvider() {
		return nil, apperr.Authorization("Only astrologers can access this")
	}
	return b.StatsFor(ctx, provider.ID)
}

// StatsFor computes Stats for providerID without an authorization check.
func (b *Broker) StatsFor(ctx context.Context, providerID string) (*Stats, error) {
	now := b.now()
	y, m, d := now.Date()
	return b.countStats(ctx, providerID, now, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (b *Broker) countStats(ctx context.Context, providerID string, now, todayStart time.Time) (*Stats, error) {
	only := func(s models.ConsultationStatus) []models.ConsultationStatus {
		return []models.ConsultationStatus{s}
	}
	var s Stats
	queries := []struct {
		dst *int64
		f   storage.ConsultationFilter
	}{
		{&s.TotalRequests, storage.ConsultationFilter{ProviderID: providerID}},
		{&s.AcceptedRequests, storage.ConsultationFilter{ProviderID: providerID, Statuses: only(models.StatusAccepted)}},
		{&s.DeclinedRequests, storage.ConsultationFilter{ProviderID: providerID, Statuses: only(models.StatusDeclined)}},
		{&s.PendingRequests, storage.ConsultationFilter{ProviderID: providerID, Statuses: only(models.StatusPending), UnexpiredAt: &now}},
		{&s.TodayRequests, storage.ConsultationFilter{ProviderID: providerID, RequestedSince: &todayStart}},
		{&s.TodayAccepted, storage.ConsultationFilter{ProviderID: providerID, Statuses: only(models.StatusAccepted), RequestedSince: &todayStart}},
	}
	for _, q := range queries {
		n, err := b.store.CountConsultations(ctx, q.f)
		if err != nil {
			return nil, apperr.Internal("failed to compute consultation stats", err)
		}
		*q.dst = n
	}
	if s.TotalRequests > 0 {
		s.AcceptanceRate = math.Round(float64(s.AcceptedRequests)/float64(s.TotalRequests)*10000) / 100
	}
	return &s, nil
}

func (b *Broker) views(ctx context.Context, reqs []models.ConsultationRequest) ([]RequestView, error) {
	ids := lo.Uniq(lo.FlatMap(reqs, func(r models.ConsultationRequest, _ int) []string {
		return []string{r.RequesterID, r.ProviderID}
	}))
	users, err := b.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}
	byID := lo.KeyBy(users, func(u models.User) string { return u.ID })
	summary := func(id string) *models.UserSummary {
		u, ok := byID[id]
		if !ok {
			return nil
		}
		s := u.Summary()
		return &s
	}

	views := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, RequestView{
			ConsultationRequest: r,
			Requester:           summary(r.RequesterID),
			Provider:            summary(r.ProviderID),
		})
	}
	return views, nil
}
