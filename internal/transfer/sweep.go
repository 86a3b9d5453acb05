package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/instrument"
)

// Sweep deletes every transfer whose expiration is at or before now,
// together with its blob, and returns how many were deleted. Running it
// twice with the same now deletes nothing the second time.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.records.Expired(now)
	if err != nil {
		return 0, fmt.Errorf("list expired transfers: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := s.remove(id); err != nil {
			if errors.Is(err, apierrors.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Noticef("Sweep deleted %d expired transfers", deleted)
	}
	instrument.Swept(deleted)
	if used, err := s.records.Usage(); err == nil {
		instrument.StorageUsed(used)
	}
	return deleted, nil
}

// Purge deletes a single transfer regardless of its expiration.
func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.remove(id); err != nil {
		return err
	}
	s.log.Noticef("Purged transfer %v", id)
	return nil
}

// remove deletes the blob before the record, so an interrupted removal
// leaves a record the next sweep retries rather than an orphaned blob.
func (s *Service) remove(id uuid.UUID) error {
	if err := s.blobs.Delete(id); err != nil {
		return fmt.Errorf("delete blob %v: %w", id, err)
	}
	if err := s.records.Delete(id); err != nil {
		return fmt.Errorf("delete record %v: %w", id, err)
	}
	return nil
}

// StartSweeper runs Sweep every interval until Halt is called, and
// reports whether it started. A non-positive interval leaves sweeping to
// an external scheduler.
func (s *Service) StartSweeper(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	s.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.HaltCh():
				return
			case <-ticker.C:
			}
			if _, err := s.Sweep(context.Background(), s.now()); err != nil {
				s.log.Errorf("Sweep failed: %v", err)
			}
		}
	})
	return true
}
