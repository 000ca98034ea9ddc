package consultation

import (
	"context"
	"errors"
	"sort"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ToggleAvailability flips the provider's availability flag and announces the new
// value to every connection.
func (b *Broker) ToggleAvailability(ctx context.Context, provider *models.User) (*models.User, error) {
	if !provider.IsProvider() {
		return nil, apperr.Authorization("Only astrologers can change availability")
	}
	u, err := b.store.ToggleUserAvailability(ctx, provider.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Astrologer not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to update availability", err)
	}
	b.announceAvailability(u)
	return u, nil
}

// SetAvailability sets userID's availability explicitly. Used by operators.
func (b *Broker) SetAvailability(ctx context.Context, userID string, available bool) (*models.User, error) {
	u, err := b.store.SetUserAvailability(ctx, userID, available)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to update availability", err)
	}
	if u.IsProvider() {
		b.announceAvailability(u)
	}
	return u, nil
}

func (b *Broker) announceAvailability(u *models.User) {
	b.notifier.Broadcast(models.NewEvent(models.EventProviderAvailability, models.AvailabilityPayload{
		AstrologerID: u.ID,
		IsAvailable:  u.IsAvailable,
		Name:         u.Name,
	}))
	b.logger.Info("availability changed",
		zap.String("user_id", u.ID),
		zap.Bool("available", u.IsAvailable))
}

// OnlineProviders returns the connected providers that accept requests, by name.
func (b *Broker) OnlineProviders(ctx context.Context) ([]models.UserSummary, error) {
	ids := b.notifier.OnlineIDs()
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}
	users, err := b.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load online users", err)
	}

	out := lo.FilterMap(users, func(u models.User, _ int) (models.UserSummary, bool) {
		return u.Summary(), u.IsProvider() && u.IsAvailable
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
