// Package config implements the crypterd configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/transfer"
)

const (
	defaultAddress         = "127.0.0.1:8080"
	defaultAllocatedGB     = 1
	defaultMaxUploadSizeMB = 64
	defaultSweepInterval   = time.Minute
	defaultLogLevel        = "NOTICE"

	bytesPerGB = 1 << 30
	bytesPerMB = 1 << 20
)

// Server is the crypterd server configuration.
type Server struct {
	// Address is the host:port the HTTP API listens on.
	Address string

	// DataDir is the absolute path to the directory holding the transfer
	// database and blobs.
	DataDir string

	// AllocatedGB is the storage allocation uploads are charged against.
	AllocatedGB float64

	// MaxUploadSizeMB caps the size of an upload request body.
	MaxUploadSizeMB int

	// SweepInterval is how often expired transfers are deleted. "0s"
	// disables the in-process sweeper, leaving it to an external
	// scheduler running `crypterd sweep`.
	SweepInterval *Duration
}

// SweepEvery returns the sweeper interval, zero when disabled.
func (sCfg *Server) SweepEvery() time.Duration {
	if sCfg.SweepInterval == nil {
		return 0
	}
	return sCfg.SweepInterval.Duration
}

// AllocatedBytes returns the storage allocation in bytes.
func (sCfg *Server) AllocatedBytes() int64 {
	return int64(sCfg.AllocatedGB * bytesPerGB)
}

// MaxUploadBytes returns the upload body cap in bytes.
func (sCfg *Server) MaxUploadBytes() int64 {
	return int64(sCfg.MaxUploadSizeMB) * bytesPerMB
}

func (sCfg *Server) applyDefaults() {
	if sCfg.Address == "" {
		sCfg.Address = defaultAddress
	}
	if sCfg.AllocatedGB == 0 {
		sCfg.AllocatedGB = defaultAllocatedGB
	}
	if sCfg.MaxUploadSizeMB == 0 {
		sCfg.MaxUploadSizeMB = defaultMaxUploadSizeMB
	}
	if sCfg.SweepInterval == nil {
		sCfg.SweepInterval = &Duration{defaultSweepInterval}
	}
}

func (sCfg *Server) validate() error {
	if !filepath.IsAbs(sCfg.DataDir) {
		return fmt.Errorf("config: Server: DataDir '%v' is not an absolute path", sCfg.DataDir)
	}
	if sCfg.AllocatedGB < 0 {
		return fmt.Errorf("config: Server: AllocatedGB %v is negative", sCfg.AllocatedGB)
	}
	if sCfg.AllocatedBytes() <= 0 {
		return fmt.Errorf("config: Server: AllocatedGB %v is less than one byte", sCfg.AllocatedGB)
	}
	if sCfg.MaxUploadSizeMB < 0 {
		return fmt.Errorf("config: Server: MaxUploadSizeMB %v is negative", sCfg.MaxUploadSizeMB)
	}
	if sCfg.SweepEvery() < 0 {
		return fmt.Errorf("config: Server: SweepInterval %v is negative", sCfg.SweepEvery())
	}
	return nil
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl
	return nil
}

// Metrics is the Prometheus exposition configuration.
type Metrics struct {
	// Enable serves /metrics on the API listener.
	Enable bool
}

// Recipient is a named account that may receive transfers.
type Recipient struct {
	// Name is the user name senders address transfers to.
	Name string

	// ID is the user's UUID, as carried by the X-Crypter-User header.
	ID string

	RefuseMessages  bool
	RefuseFiles     bool
	RefuseAnonymous bool
}

// Config is the top level crypterd configuration.
type Config struct {
	Server     *Server
	Logging    *Logging
	Metrics    *Metrics
	Recipients []*Recipient
}

// Directory builds the recipient directory.
func (cfg *Config) Directory() *transfer.StaticDirectory {
	recipients := make([]transfer.Recipient, 0, len(cfg.Recipients))
	for _, r := range cfg.Recipients {
		recipients = append(recipients, transfer.Recipient{
			ID:   uuid.MustParse(r.ID),
			Name: r.Name,
			Policy: transfer.Policy{
				RefuseMessages:  r.RefuseMessages,
				RefuseFiles:     r.RefuseFiles,
				RefuseAnonymous: r.RefuseAnonymous,
			},
		})
	}
	return transfer.NewStaticDirectory(recipients)
}

// FixupAndValidate applies defaults to config entries and validates the
// supplied configuration.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Server == nil {
		return errors.New("config: No Server block was present")
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &Metrics{}
	}

	cfg.Server.applyDefaults()
	if err := cfg.Server.validate(); err != nil {
		return err
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}

	names := make(map[string]bool)
	ids := make(map[uuid.UUID]bool)
	for _, r := range cfg.Recipients {
		if r.Name == "" {
			return errors.New("config: Recipients: Name is not set")
		}
		name := strings.ToLower(r.Name)
		if names[name] {
			return fmt.Errorf("config: Recipients: Name '%v' is present more than once", r.Name)
		}
		names[name] = true

		id, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("config: Recipients: '%v': invalid ID: %v", r.Name, err)
		}
		if ids[id] {
			return fmt.Errorf("config: Recipients: ID '%v' is present more than once", id)
		}
		ids[id] = true
	}
	return nil
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
