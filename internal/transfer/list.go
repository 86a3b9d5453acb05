package transfer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/apierrors"
)

// Sent lists the unexpired transfers uploaded by user, newest first.
func (s *Service) Sent(ctx context.Context, user uuid.UUID) ([]*Summary, error) {
	summaries, err := s.list(ctx, user, s.records.Sent)
	observeRetrieval("sent", err)
	return summaries, err
}

// Received lists the unexpired transfers addressed to user, newest first.
func (s *Service) Received(ctx context.Context, user uuid.UUID) ([]*Summary, error) {
	summaries, err := s.list(ctx, user, s.records.Received)
	observeRetrieval("received", err)
	return summaries, err
}

func (s *Service) list(ctx context.Context, user uuid.UUID, load func(uuid.UUID) ([]*Envelope, error)) ([]*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	envs, err := load(user)
	if err != nil {
		s.log.Errorf("Failed to list transfers of %v: %v", user, err)
		return nil, fmt.Errorf("%w: %v", apierrors.ErrUnknown, err)
	}

	now := s.now()
	summaries := make([]*Summary, 0, len(envs))
	for _, env := range envs {
		if env.Expired(now) {
			continue
		}
		summaries = append(summaries, &Summary{
			ID:          env.ID,
			SenderID:    env.SenderID,
			RecipientID: env.RecipientID,
			Payload:     env.Payload,
			Size:        env.Size,
			Created:     env.Created,
			Expiration:  env.Expiration,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Created.After(summaries[j].Created)
	})
	return summaries, nil
}
