package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/crypto"
	"github.com/crypter-io/crypter-go/internal/instrument"
)

// Preview returns the metadata of a transfer.
func (s *Service) Preview(ctx context.Context, kind Kind, id uuid.UUID, requestor *uuid.UUID) (*Preview, error) {
	env, err := s.lookup(ctx, kind, id, requestor)
	observeRetrieval("preview", err)
	if err != nil {
		return nil, err
	}
	return &Preview{
		ID:                 env.ID,
		SenderID:           env.SenderID,
		RecipientID:        env.RecipientID,
		Payload:            env.Payload,
		Size:               env.Size,
		AgreementPublicKey: env.AgreementPublicKey,
		Created:            env.Created,
		Expiration:         env.Expiration,
	}, nil
}

// Ciphertext removes the server's encryption layer from a stored
// transfer and checks the result against the digest recorded on
// admission. A mismatch is reported as ErrStorageIntegrityViolation.
func (s *Service) Ciphertext(ctx context.Context, kind Kind, id uuid.UUID, requestor *uuid.UUID) (*Ciphertext, error) {
	ct, err := s.ciphertext(ctx, kind, id, requestor)
	observeRetrieval("ciphertext", err)
	return ct, err
}

func (s *Service) ciphertext(ctx context.Context, kind Kind, id uuid.UUID, requestor *uuid.UUID) (*Ciphertext, error) {
	env, err := s.lookup(ctx, kind, id, requestor)
	if err != nil {
		return nil, err
	}

	stored, err := s.blobs.Get(id)
	if err != nil {
		return nil, s.storeError(id, err)
	}

	ciphertext, err := crypto.Decrypt(crypto.ServerCipher, env.ServerKey, env.ServerIV, stored)
	if err != nil {
		return nil, s.integrityViolation(id, err)
	}
	if !crypto.DigestEqual(crypto.Digest(ciphertext), env.ServerDigest) {
		return nil, s.integrityViolation(id, errors.New("digest mismatch"))
	}

	return &Ciphertext{
		Ciphertext:         ciphertext,
		ClientIV:           env.ClientIV,
		AgreementPublicKey: env.AgreementPublicKey,
	}, nil
}

// Signature returns the sender's signature and signing key.
func (s *Service) Signature(ctx context.Context, kind Kind, id uuid.UUID, requestor *uuid.UUID) (*Signature, error) {
	env, err := s.lookup(ctx, kind, id, requestor)
	observeRetrieval("signature", err)
	if err != nil {
		return nil, err
	}
	return &Signature{
		Signature:       env.Signature,
		SignerPublicKey: env.SignerPublicKey,
	}, nil
}

// lookup loads a record and hides it unless it is of the requested kind,
// unexpired and visible to requestor.
func (s *Service) lookup(ctx context.Context, kind Kind, id uuid.UUID, requestor *uuid.UUID) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env, err := s.records.Get(id)
	if err != nil {
		return nil, s.storeError(id, err)
	}
	if env.Payload.Kind != kind || env.Expired(s.now()) || !env.VisibleTo(requestor) {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrNotFound, id)
	}
	return env, nil
}

func (s *Service) storeError(id uuid.UUID, err error) error {
	if errors.Is(err, apierrors.ErrNotFound) {
		return err
	}
	s.log.Errorf("Failed to load transfer %v: %v", id, err)
	return fmt.Errorf("%w: %v", apierrors.ErrUnknown, err)
}

func (s *Service) integrityViolation(id uuid.UUID, cause error) error {
	s.log.Errorf("Stored transfer %v failed verification: %v", id, cause)
	instrument.IntegrityViolation()
	return fmt.Errorf("%w: %v", apierrors.ErrStorageIntegrityViolation, id)
}

func observeRetrieval(op string, err error) {
	result := "OK"
	if err != nil {
		result = string(apierrors.CodeOf(err))
	}
	instrument.Retrieval(op, result)
}
