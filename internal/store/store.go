// Package store persists transfers on local disk: envelope records in a
// bbolt database and server-encrypted ciphertext as one file per
// transfer.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/transfer"
)

const (
	// StorageVersion is the version of the on disk format.
	StorageVersion = 0

	dbFile = "crypter.db"

	metadataBucket  = "metadata"
	versionKey      = "version"
	usageKey        = "usage"
	transfersBucket = "transfers"
	expiryBucket    = "expiry"
	sentBucket      = "sent"
	receivedBucket  = "received"

	expiryKeySize = 8 + 16
	userKeySize   = 16 + 16
)

// record is the CBOR encoding of a transfer.Envelope.
type record struct {
	Kind        string     `cbor:"1,keyasint"`
	SenderID    *uuid.UUID `cbor:"2,keyasint,omitempty"`
	RecipientID *uuid.UUID `cbor:"3,keyasint,omitempty"`
	Subject     string     `cbor:"4,keyasint,omitempty"`
	FileName    string     `cbor:"5,keyasint,omitempty"`
	ContentType string     `cbor:"6,keyasint,omitempty"`
	Size        int64      `cbor:"7,keyasint"`

	ClientIV           []byte `cbor:"8,keyasint"`
	Signature          []byte `cbor:"9,keyasint"`
	SignerPublicKey    []byte `cbor:"10,keyasint"`
	AgreementPublicKey []byte `cbor:"11,keyasint"`

	ServerIV     []byte `cbor:"12,keyasint"`
	ServerDigest []byte `cbor:"13,keyasint"`
	ServerKey    []byte `cbor:"14,keyasint"`

	Created    int64 `cbor:"15,keyasint"`
	Expiration int64 `cbor:"16,keyasint"`
}

func toRecord(env *transfer.Envelope) *record {
	return &record{
		Kind:               string(env.Payload.Kind),
		SenderID:           env.SenderID,
		RecipientID:        env.RecipientID,
		Subject:            env.Payload.Subject,
		FileName:           env.Payload.FileName,
		ContentType:        env.Payload.ContentType,
		Size:               env.Size,
		ClientIV:           env.ClientIV,
		Signature:          env.Signature,
		SignerPublicKey:    env.SignerPublicKey,
		AgreementPublicKey: env.AgreementPublicKey,
		ServerIV:           env.ServerIV,
		ServerDigest:       env.ServerDigest,
		ServerKey:          env.ServerKey,
		Created:            env.Created.UnixNano(),
		Expiration:         env.Expiration.UnixNano(),
	}
}

func (r *record) envelope(id uuid.UUID) *transfer.Envelope {
	return &transfer.Envelope{
		ID:          id,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Payload: transfer.Payload{
			Kind:        transfer.Kind(r.Kind),
			Subject:     r.Subject,
			FileName:    r.FileName,
			ContentType: r.ContentType,
		},
		Size:               r.Size,
		ClientIV:           r.ClientIV,
		Signature:          r.Signature,
		SignerPublicKey:    r.SignerPublicKey,
		AgreementPublicKey: r.AgreementPublicKey,
		ServerIV:           r.ServerIV,
		ServerDigest:       r.ServerDigest,
		ServerKey:          r.ServerKey,
		Created:            time.Unix(0, r.Created).UTC(),
		Expiration:         time.Unix(0, r.Expiration).UTC(),
	}
}

func expiryKey(expiration time.Time, id uuid.UUID) []byte {
	var k [expiryKeySize]byte
	binary.BigEndian.PutUint64(k[0:], uint64(expiration.UnixNano()))
	copy(k[8:], id[:])
	return k[:]
}

// userKey indexes a transfer under a user. Keys sort by user, so one
// user's transfers are a contiguous range.
func userKey(user, id uuid.UUID) []byte {
	var k [userKeySize]byte
	copy(k[:16], user[:])
	copy(k[16:], id[:])
	return k[:]
}

// Records is a transfer.Records backed by bbolt. Every envelope is
// stored under its id, indexed by expiration, sender and recipient, and
// charged to a usage counter, all in the same transaction.
type Records struct {
	db *bolt.DB
}

// OpenRecords opens or creates the record database in dataDir.
func OpenRecords(dataDir string) (*Records, error) {
	db, err := bolt.Open(filepath.Join(dataDir, dbFile), 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(transfersBucket)); err != nil {
			return err
		}
		for _, name := range []string{expiryBucket, sentBucket, receivedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}

		if b := meta.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != StorageVersion {
				return fmt.Errorf("store: incompatible version: %d", uint(b[0]))
			}
			return nil
		}
		if err := meta.Put([]byte(versionKey), []byte{StorageVersion}); err != nil {
			return err
		}
		return putUsage(meta, 0)
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Records{db: db}, nil
}

// Close closes the database.
func (r *Records) Close() error {
	return r.db.Close()
}

func getUsage(meta *bolt.Bucket) int64 {
	b := meta.Get([]byte(usageKey))
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func putUsage(meta *bolt.Bucket, n int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return meta.Put([]byte(usageKey), b[:])
}

// Insert implements transfer.Records.
func (r *Records) Insert(env *transfer.Envelope) error {
	raw, err := cbor.Marshal(toRecord(env))
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		transfers := tx.Bucket([]byte(transfersBucket))
		if transfers.Get(env.ID[:]) != nil {
			return fmt.Errorf("store: duplicate transfer %v", env.ID)
		}
		if err := transfers.Put(env.ID[:], raw); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(expiryBucket)).Put(expiryKey(env.Expiration, env.ID), nil); err != nil {
			return err
		}
		if env.SenderID != nil {
			if err := tx.Bucket([]byte(sentBucket)).Put(userKey(*env.SenderID, env.ID), nil); err != nil {
				return err
			}
		}
		if env.RecipientID != nil {
			if err := tx.Bucket([]byte(receivedBucket)).Put(userKey(*env.RecipientID, env.ID), nil); err != nil {
				return err
			}
		}
		meta := tx.Bucket([]byte(metadataBucket))
		return putUsage(meta, getUsage(meta)+env.Size)
	})
}

// Get implements transfer.Records.
func (r *Records) Get(id uuid.UUID) (*transfer.Envelope, error) {
	var env *transfer.Envelope
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(transfersBucket)).Get(id[:])
		if raw == nil {
			return fmt.Errorf("%w: record %v", apierrors.ErrNotFound, id)
		}
		// raw is only valid for the life of the transaction.
		rec := new(record)
		if err := cbor.Unmarshal(raw, rec); err != nil {
			return fmt.Errorf("store: corrupt record %v: %w", id, err)
		}
		env = rec.envelope(id)
		return nil
	})
	return env, err
}

// Delete implements transfer.Records.
func (r *Records) Delete(id uuid.UUID) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		transfers := tx.Bucket([]byte(transfersBucket))
		raw := transfers.Get(id[:])
		if raw == nil {
			return fmt.Errorf("%w: record %v", apierrors.ErrNotFound, id)
		}
		rec := new(record)
		if err := cbor.Unmarshal(raw, rec); err != nil {
			return fmt.Errorf("store: corrupt record %v: %w", id, err)
		}

		if err := transfers.Delete(id[:]); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(expiryBucket)).Delete(expiryKey(time.Unix(0, rec.Expiration), id)); err != nil {
			return err
		}
		if rec.SenderID != nil {
			if err := tx.Bucket([]byte(sentBucket)).Delete(userKey(*rec.SenderID, id)); err != nil {
				return err
			}
		}
		if rec.RecipientID != nil {
			if err := tx.Bucket([]byte(receivedBucket)).Delete(userKey(*rec.RecipientID, id)); err != nil {
				return err
			}
		}
		meta := tx.Bucket([]byte(metadataBucket))
		return putUsage(meta, max(getUsage(meta)-rec.Size, 0))
	})
}

// Usage implements transfer.Records.
func (r *Records) Usage() (int64, error) {
	var n int64
	err := r.db.View(func(tx *bolt.Tx) error {
		n = getUsage(tx.Bucket([]byte(metadataBucket)))
		return nil
	})
	return n, err
}

// Expired implements transfer.Records. The expiry index is ordered by
// time, so the scan stops at the first unexpired entry.
func (r *Records) Expired(now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	limit := uint64(now.UnixNano())
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(expiryBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) != expiryKeySize {
				return fmt.Errorf("store: malformed expiry key %x", k)
			}
			if binary.BigEndian.Uint64(k[:8]) > limit {
				break
			}
			id, err := uuid.FromBytes(k[8:])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// Sent implements transfer.Records.
func (r *Records) Sent(user uuid.UUID) ([]*transfer.Envelope, error) {
	return r.byUser(sentBucket, user)
}

// Received implements transfer.Records.
func (r *Records) Received(user uuid.UUID) ([]*transfer.Envelope, error) {
	return r.byUser(receivedBucket, user)
}

func (r *Records) byUser(index string, user uuid.UUID) ([]*transfer.Envelope, error) {
	var envs []*transfer.Envelope
	err := r.db.View(func(tx *bolt.Tx) error {
		transfers := tx.Bucket([]byte(transfersBucket))
		c := tx.Bucket([]byte(index)).Cursor()
		for k, _ := c.Seek(user[:]); k != nil && bytes.HasPrefix(k, user[:]); k, _ = c.Next() {
			if len(k) != userKeySize {
				return fmt.Errorf("store: malformed %s key %x", index, k)
			}
			id, err := uuid.FromBytes(k[16:])
			if err != nil {
				return err
			}
			raw := transfers.Get(id[:])
			if raw == nil {
				return fmt.Errorf("store: %s index names missing record %v", index, id)
			}
			rec := new(record)
			if err := cbor.Unmarshal(raw, rec); err != nil {
				return fmt.Errorf("store: corrupt record %v: %w", id, err)
			}
			envs = append(envs, rec.envelope(id))
		}
		return nil
	})
	return envs, err
}

// Blobs is a transfer.Blobs storing each ciphertext as a file named
// after its transfer id.
type Blobs struct {
	dir string
}

// OpenBlobs creates the blob directory under dataDir if needed.
func OpenBlobs(dataDir string) (*Blobs, error) {
	dir := filepath.Join(dataDir, "blobs")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Blobs{dir: dir}, nil
}

func (b *Blobs) path(id uuid.UUID) string {
	return filepath.Join(b.dir, id.String())
}

// Put implements transfer.Blobs. The blob is written to a temporary
// file and renamed into place, so readers never see a partial blob.
func (b *Blobs) Put(id uuid.UUID, data []byte) error {
	f, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, b.path(id))
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: write blob %v: %w", id, err)
	}
	return nil
}

// Get implements transfer.Blobs.
func (b *Blobs) Get(id uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(b.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %v", apierrors.ErrNotFound, id)
	}
	return data, err
}

// Delete implements transfer.Blobs.
func (b *Blobs) Delete(id uuid.UUID) error {
	err := os.Remove(b.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
