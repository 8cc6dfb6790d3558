package events

import (
	"context"
	"time"
)

type presenceRecorder interface {
	Record(ctx context.Context, userID string, online bool, at time.Time) error
}

// PresenceStore writes each presence transition to the last-seen table.
type PresenceStore struct {
	repo presenceRecorder
}

func NewPresenceStore(repo presenceRecorder) *PresenceStore {
	return &PresenceStore{repo: repo}
}

func (p *PresenceStore) Name() string { return "presence-store" }

func (p *PresenceStore) Handle(ctx context.Context, ev Event) error {
	if ev.Kind != KindPresence {
		return nil
	}
	return p.repo.Record(ctx, ev.UserID, ev.Online, ev.At)
}
