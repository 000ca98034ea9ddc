package storage

import (
	"context"
	"errors"

	"astrochat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetUserByID повертає користувача за ID або ErrNotFound.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Service) SetUserAvailability(ctx context.Context, id string, available bool) (*models.User, error) {
	var user models.User
	res := s.DB.WithContext(ctx).Model(&user).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_available": available})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &user, nil
}

// ToggleUserAvailability інвертує is_available одним UPDATE і повертає оновлений запис.
func (s *Service) ToggleUserAvailability(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	res := s.DB.WithContext(ctx).Model(&user).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Update("is_available", gorm.Expr("NOT is_available"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &user, nil
}
