package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/parleyhq/session-service/internal/postgres"
)

// Archiver periodically marks rooms past the retention window as archived.
type Archiver struct {
	roomRepo *postgres.RoomRepository

	every     time.Duration
	retention time.Duration
}

func NewArchiver(roomRepo *postgres.RoomRepository, every, retention time.Duration) *Archiver {
	if every <= 0 {
		every = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Archiver{roomRepo: roomRepo, every: every, retention: retention}
}

// Run blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.roomRepo.ArchiveStale(ctx, time.Now().Add(-a.retention))
			if err != nil {
				slog.Warn("archive sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("archived stale rooms", "count", n)
			}
		}
	}
}
