package storage

import (
	"context"
	"errors"
	"time"

	"astrochat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record addressed by id does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a uniqueness rule,
	// e.g. a second pending consultation request for the same pair.
	ErrConflict = errors.New("record conflict")
)

type Storage interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SetUserAvailability(ctx context.Context, id string, available bool) (*models.User, error)
	ToggleUserAvailability(ctx context.Context, id string) (*models.User, error)

	CreateConsultation(ctx context.Context, req *models.ConsultationRequest) error
	GetConsultation(ctx context.Context, id string) (*models.ConsultationRequest, error)
	TransitionConsultation(ctx context.Context, id string, from models.ConsultationStatus, t models.ConsultationTransition) (bool, error)
	ExpireOverdueConsultations(ctx context.Context, now time.Time) (int64, error)
	FindConsultations(ctx context.Context, f ConsultationFilter) ([]models.ConsultationRequest, error)
	CountConsultations(ctx context.Context, f ConsultationFilter) (int64, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id, senderID string) (bool, error)
	MarkMessagesRead(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error)
	FindConversation(ctx context.Context, userA, userB string, skip, limit int64) ([]models.Message, error)
	CountMessages(ctx context.Context, f MessageFilter) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// Service is the production Storage: users and consultation requests live in
// PostgreSQL, messages in MongoDB, short-lived coordination keys in Redis.
type Service struct {
	DB    *gorm.DB
	Mongo *mongo.Database
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, mdb *mongo.Database, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Mongo: mdb,
		Redis: rdb,
	}
}

var _ Storage = (*Service)(nil)
