package store

import (
	"context"

	"chat-relay/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore interface {
	// Create persists a message and assigns its record identifier.
	Create(ctx context.Context, msg *models.Message) error

	// FindBetween returns every message exchanged between the two users,
	// in ascending creation order.
	FindBetween(ctx context.Context, idA, idB string) ([]models.Message, error)
}

type messageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) MessageStore {
	return &messageStore{db: db}
}

func (s *messageStore) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *messageStore) FindBetween(ctx context.Context, idA, idB string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			idA, idB, idB, idA).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
