package transfer

import (
	"errors"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/crypter-io/crypter-go/internal/worker"
)

// Config configures a Service.
type Config struct {
	Records Records
	Blobs   Blobs
	// Directory resolves named recipients. Without one only anonymous
	// transfers are accepted.
	Directory Directory
	// AllocatedBytes is the storage allocation uploads are charged
	// against.
	AllocatedBytes int64
	// Logger defaults to a logger for the "transfer" module.
	Logger *logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs admission, retrieval and the expiration sweep. It holds
// no per-transfer state, so concurrent requests share nothing but the
// stores.
type Service struct {
	worker.Worker

	records   Records
	blobs     Blobs
	directory Directory
	allocated int64
	log       *logging.Logger
	now       func() time.Time
}

// New creates a Service.
func New(cfg *Config) (*Service, error) {
	if cfg.Records == nil || cfg.Blobs == nil {
		return nil, errors.New("transfer: records and blobs are required")
	}
	if cfg.AllocatedBytes <= 0 {
		return nil, errors.New("transfer: storage allocation must be positive")
	}

	s := &Service{
		records:   cfg.Records,
		blobs:     cfg.Blobs,
		directory: cfg.Directory,
		allocated: cfg.AllocatedBytes,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if s.log == nil {
		s.log = logging.MustGetLogger("transfer")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}
