package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/crypto"
	"github.com/crypter-io/crypter-go/internal/instrument"
)

// Admit validates an upload, applies the server's encryption layer and
// stores the result. senderID is nil for anonymous uploads.
//
// Every failure matches one of the apierrors sentinels. Nothing is
// persisted unless both the blob and its record are written.
func (s *Service) Admit(ctx context.Context, senderID *uuid.UUID, req *UploadRequest) (*Receipt, error) {
	receipt, err := s.admit(ctx, senderID, req)
	if err != nil {
		instrument.Admission(string(req.Payload.Kind), string(apierrors.CodeOf(err)))
		return nil, err
	}
	instrument.Admission(string(req.Payload.Kind), "OK")
	return receipt, nil
}

func (s *Service) admit(ctx context.Context, senderID *uuid.UUID, req *UploadRequest) (*Receipt, error) {
	if _, ok := ParseKind(string(req.Payload.Kind)); !ok {
		return nil, fmt.Errorf("%w: unknown transfer kind %q", apierrors.ErrNotFound, req.Payload.Kind)
	}

	recipientID, err := s.resolveRecipient(req.Recipient, req.Payload.Kind, senderID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.DecodeBase64Chunks(req.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidCiphertext, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%crypto.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of blocks", apierrors.ErrInvalidCiphertext, len(ciphertext))
	}

	serverKey, err := crypto.DecodeBase64(req.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidServerEncryptionKey, err)
	}

	env := &Envelope{
		SenderID:    senderID,
		RecipientID: recipientID,
		Payload:     req.Payload,
		Size:        int64(len(ciphertext)),
	}
	if env.Payload.Kind == KindFile && env.Payload.ContentType == "" {
		env.Payload.ContentType = DefaultContentType
	}
	if err := decodeEnvelopeFields(env, req); err != nil {
		return nil, err
	}

	if len(serverKey) != crypto.ServerKeySize {
		return nil, fmt.Errorf("%w: key is %d bytes", apierrors.ErrInvalidServerEncryptionKey, len(serverKey))
	}

	if req.LifetimeHours < MinLifetimeHours || req.LifetimeHours > MaxLifetimeHours {
		return nil, fmt.Errorf("%w: %d", apierrors.ErrInvalidRequestedLifetimeHours, req.LifetimeHours)
	}

	// The check and the later insert are not atomic. Concurrent uploads
	// may overshoot the allocation slightly.
	used, err := s.records.Usage()
	if err != nil {
		s.log.Errorf("Failed to read storage usage: %v", err)
		return nil, fmt.Errorf("%w: %v", apierrors.ErrUnknown, err)
	}
	if used+env.Size > s.allocated {
		s.log.Warningf("Rejecting %d byte upload: %d of %d bytes used", env.Size, used, s.allocated)
		return nil, apierrors.ErrOutOfSpace
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env.ServerDigest = crypto.Digest(ciphertext)
	stored, serverIV, err := crypto.EncryptWithRandomIV(crypto.ServerCipher, serverKey, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: server encryption: %v", apierrors.ErrUnknown, err)
	}
	env.ServerIV = serverIV
	env.ServerKey = serverKey

	env.ID = uuid.New()
	env.Created = s.now().UTC()
	env.Expiration = env.Created.Add(time.Duration(req.LifetimeHours) * time.Hour)

	if err := s.blobs.Put(env.ID, stored); err != nil {
		s.log.Errorf("Failed to write blob %v: %v", env.ID, err)
		return nil, fmt.Errorf("%w: %v", apierrors.ErrUnknown, err)
	}
	if err := s.records.Insert(env); err != nil {
		s.log.Errorf("Failed to insert record %v: %v", env.ID, err)
		if derr := s.blobs.Delete(env.ID); derr != nil {
			s.log.Errorf("Failed to remove orphaned blob %v: %v", env.ID, derr)
		}
		return nil, fmt.Errorf("%w: %v", apierrors.ErrUnknown, err)
	}

	instrument.AdmittedBytes(env.Size)
	if used, err := s.records.Usage(); err == nil {
		instrument.StorageUsed(used)
	}
	s.log.Debugf("Admitted %s transfer %v (%d bytes, expires %v)", env.Payload.Kind, env.ID, env.Size, env.Expiration)

	return &Receipt{ID: env.ID, Expiration: env.Expiration}, nil
}

func (s *Service) resolveRecipient(name string, kind Kind, senderID *uuid.UUID) (*uuid.UUID, error) {
	if name == "" {
		return nil, nil
	}
	if s.directory == nil {
		return nil, fmt.Errorf("%w: %q", apierrors.ErrRecipientNotFound, name)
	}
	r, ok := s.directory.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apierrors.ErrRecipientNotFound, name)
	}
	if !r.Policy.Accepts(kind, senderID) {
		return nil, apierrors.ErrBlockedByRecipientPrivacy
	}
	id := r.ID
	return &id, nil
}

func decodeEnvelopeFields(env *Envelope, req *UploadRequest) error {
	iv, err := crypto.DecodeBase64(req.ClientIV)
	if err != nil || len(iv) != crypto.BlockSize {
		return fmt.Errorf("%w: malformed client IV", apierrors.ErrInvalidCiphertext)
	}
	sig, err := crypto.DecodeBase64(req.Signature)
	if err != nil || len(sig) != crypto.Ed25519SignatureSize {
		return fmt.Errorf("%w: malformed signature", apierrors.ErrInvalidCiphertext)
	}
	if _, err := crypto.ParseSigningPublicKey([]byte(req.SignerPublicKey)); err != nil {
		return fmt.Errorf("%w: signer public key: %v", apierrors.ErrInvalidCiphertext, err)
	}
	if _, err := crypto.ParseAgreementPublicKey([]byte(req.AgreementPublicKey)); err != nil {
		return fmt.Errorf("%w: agreement public key: %v", apierrors.ErrInvalidCiphertext, err)
	}

	env.ClientIV = iv
	env.Signature = sig
	env.SignerPublicKey = []byte(req.SignerPublicKey)
	env.AgreementPublicKey = []byte(req.AgreementPublicKey)
	return nil
}
