package repository

import (
	"context"
	"errors"
	"time"

	"foodmed/internal/domain"
	"foodmed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Record upserts the last-seen row for userID.
func (r *PresenceRepository) Record(ctx context.Context, userID string, online bool, at time.Time) error {
	status := domain.PresenceOffline
	if online {
		status = domain.PresenceOnline
	}
	p := &models.UserPresence{
		UserID:     userID,
		Status:     status,
		IsOnline:   online,
		LastSeenAt: at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "is_online", "last_seen_at", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return persistenceError(err, "upsert user presence")
	}
	return nil
}

// GetByUserID returns nil without error for a user never seen.
func (r *PresenceRepository) GetByUserID(ctx context.Context, userID string) (*models.UserPresence, error) {
	var p models.UserPresence
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError(err, "load user presence")
	}
	return &p, nil
}

// ResetOnline marks every row offline. Called at startup since the in-memory
// online set starts empty.
func (r *PresenceRepository) ResetOnline(ctx context.Context) error {
	err := r.db.WithContext(ctx).Model(&models.UserPresence{}).
		Where("is_online = ?", true).
		Updates(map[string]interface{}{"is_online": false, "status": domain.PresenceOffline}).Error
	if err != nil {
		return persistenceError(err, "reset user presence")
	}
	return nil
}
