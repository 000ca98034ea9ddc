package storage

import (
	"context"
	"errors"
	"time"

	"astrochat/backend/internal/models"

	"gorm.io/gorm"
)

// CreateConsultation inserts req as a pending request. Overdue pending rows for the
// same pair are expired first, in the same transaction; a still-live pending row makes
// the insert hit ux_pending_pair and the call returns ErrConflict.
func (s *Service) CreateConsultation(ctx context.Context, req *models.ConsultationRequest) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ConsultationRequest{}).
			Where("requester_id = ? AND provider_id = ?", req.RequesterID, req.ProviderID).
			Where("status = ? AND expires_at < ?", string(models.StatusPending), req.RequestedAt).
			Updates(map[string]interface{}{
				"status":       string(models.StatusExpired),
				"responded_at": req.RequestedAt,
			}).Error; err != nil {
			return err
		}
		return tx.Create(req).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (s *Service) GetConsultation(ctx context.Context, id string) (*models.ConsultationRequest, error) {
	var req models.ConsultationRequest
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// TransitionConsultation applies t only while the row still has status from.
// It reports false when another writer got there first (or the id is unknown).
func (s *Service) TransitionConsultation(ctx context.Context, id string, from models.ConsultationStatus, t models.ConsultationTransition) (bool, error) {
	updates := map[string]interface{}{"status": string(t.To)}
	if t.RespondedAt != nil {
		updates["responded_at"] = *t.RespondedAt
	}
	if t.CompletedAt != nil {
		updates["completed_at"] = *t.CompletedAt
	}

	res := s.DB.WithContext(ctx).Model(&models.ConsultationRequest{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireOverdueConsultations переводить усі прострочені pending-запити в expired.
func (s *Service) ExpireOverdueConsultations(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.ConsultationRequest{}).
		Where("status = ? AND expires_at < ?", string(models.StatusPending), now).
		Updates(map[string]interface{}{
			"status":       string(models.StatusExpired),
			"responded_at": now,
		})
	return res.RowsAffected, res.Error
}

func (s *Service) FindConsultations(ctx context.Context, f ConsultationFilter) ([]models.ConsultationRequest, error) {
	var out []models.ConsultationRequest
	q := applyConsultationFilter(s.DB.WithContext(ctx).Model(&models.ConsultationRequest{}), f).
		Order("requested_at desc")
	if f.Skip > 0 {
		q = q.Offset(f.Skip)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CountConsultations(ctx context.Context, f ConsultationFilter) (int64, error) {
	var n int64
	err := applyConsultationFilter(s.DB.WithContext(ctx).Model(&models.ConsultationRequest{}), f).
		Count(&n).Error
	return n, err
}

func applyConsultationFilter(q *gorm.DB, f ConsultationFilter) *gorm.DB {
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.ProviderID != "" {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.statusStrings())
	}
	if f.UnexpiredAt != nil {
		q = q.Where("expires_at >= ?", *f.UnexpiredAt)
	}
	if f.RequestedSince != nil {
		q = q.Where("requested_at >= ?", *f.RequestedSince)
	}
	if f.PendingOrRequestedSince != nil {
		q = q.Where("(status = ? OR requested_at >= ?)", string(models.StatusPending), *f.PendingOrRequestedSince)
	}
	return q
}
