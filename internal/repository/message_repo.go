package repository

import (
	"context"
	"fmt"

	"foodmed/internal/domain"
	"foodmed/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// HistoryQuery selects messages exchanged between UserA and UserB in either
// direction. With both users empty it selects every message.
type HistoryQuery struct {
	UserA  string
	UserB  string
	Limit  int
	Offset int
}

func (q HistoryQuery) validate() error {
	if (q.UserA == "") != (q.UserB == "") {
		return fmt.Errorf("%w: both users of the pair are required", domain.ErrValidation)
	}
	return nil
}

func newMessage(clock *Clock, sender, recipient, text string) *models.Message {
	ts := clock.Next()
	return &models.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  recipient,
		Content:   text,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func persistenceError(err error, msg string) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistence, errors.Wrap(err, msg))
}

// MessageRepository stores chat messages in MySQL.
type MessageRepository struct {
	db    *gorm.DB
	clock *Clock
}

func NewMessageRepository(db *gorm.DB, clock *Clock) *MessageRepository {
	return &MessageRepository{db: db, clock: clock}
}

func (r *MessageRepository) Save(ctx context.Context, sender, recipient, text string) (*models.Message, error) {
	m := newMessage(r.clock, sender, recipient, text)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, persistenceError(err, "insert chat message")
	}
	return m, nil
}

func (r *MessageRepository) Query(ctx context.Context, q HistoryQuery) ([]models.Message, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	tx := r.db.WithContext(ctx).Model(&models.Message{})
	if q.UserA != "" {
		tx = tx.Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", q.UserA, q.UserB, q.UserB, q.UserA)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	var list []models.Message
	if err := tx.Order("created_at ASC").Order("id ASC").Find(&list).Error; err != nil {
		return nil, persistenceError(err, "query chat messages")
	}
	return list, nil
}
