// Command crypterd runs the Crypter transfer server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crypter-io/crypter-go/internal/config"
	"github.com/crypter-io/crypter-go/internal/httpapi"
	"github.com/crypter-io/crypter-go/internal/instrument"
	"github.com/crypter-io/crypter-go/internal/log"
	"github.com/crypter-io/crypter-go/internal/store"
	"github.com/crypter-io/crypter-go/internal/transfer"
)

// stack is an opened data directory with the service on top of it.
type stack struct {
	cfg     *config.Config
	backend *log.Backend
	records *store.Records
	svc     *transfer.Service
}

func openStack(configFile string) (*stack, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%v': %v", configFile, err)
	}

	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %v", err)
	}

	records, err := store.OpenRecords(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer database: %v", err)
	}
	blobs, err := store.OpenBlobs(cfg.Server.DataDir)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("failed to open blob store: %v", err)
	}

	svc, err := transfer.New(&transfer.Config{
		Records:        records,
		Blobs:          blobs,
		Directory:      cfg.Directory(),
		AllocatedBytes: cfg.Server.AllocatedBytes(),
		Logger:         backend.GetLogger("transfer"),
	})
	if err != nil {
		records.Close()
		return nil, err
	}

	if used, err := records.Usage(); err == nil {
		instrument.StorageUsed(used)
	}
	return &stack{cfg: cfg, backend: backend, records: records, svc: svc}, nil
}

// startSweeper starts the in-process sweeper unless SweepInterval is 0.
func (s *stack) startSweeper() bool {
	return s.svc.StartSweeper(s.cfg.Server.SweepEvery())
}

func (s *stack) Close() {
	s.svc.Halt()
	s.records.Close()
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "crypterd",
		Short: "Crypter secure transfer server",
		Long: `crypterd stores end-to-end encrypted messages and files until they
expire. Uploads arrive already encrypted and signed by the sender; the
server adds an at-rest encryption layer, records a digest of what it
received, and verifies that digest on every download.

Expired transfers are deleted by a background sweep, or on demand with
the sweep subcommand.`,
		Example: `  # Run the server
  crypterd serve -f /etc/crypter/crypterd.toml

  # Delete expired transfers once and exit
  crypterd sweep -f /etc/crypter/crypterd.toml

  # Delete one transfer immediately
  crypterd purge 6f1c2b7e-1d0a-4d7c-9d3c-7a2b9a6b1f01 -f /etc/crypter/crypterd.toml`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "f", "crypterd.toml",
		"path to the server configuration file (TOML format)")

	cmd.AddCommand(
		newServeCommand(&configFile),
		newSweepCommand(&configFile),
		newPurgeCommand(&configFile),
	)
	return cmd
}

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiration sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configFile)
		},
	}
}

func newSweepCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete all expired transfers and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStack(*configFile)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.svc.Sweep(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired transfers\n", n)
			return nil
		},
	}
}

func newPurgeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <transfer-id>...",
		Short: "Delete transfers regardless of their expiration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid transfer id '%v': %v", arg, err)
				}
				ids = append(ids, id)
			}

			s, err := openStack(*configFile)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range ids {
				if err := s.svc.Purge(cmd.Context(), id); err != nil {
					return fmt.Errorf("purge %v: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %v\n", id)
			}
			return nil
		},
	}
}

func main() {
	rootCmd := newRootCommand()

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versioninfo.Short()),
	); err != nil {
		os.Exit(1)
	}
}

func runServer(configFile string) error {
	s, err := openStack(configFile)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.backend.GetLogger("crypterd")

	// Setup the signal handling.
	haltCh := make(chan os.Signal, 1)
	signal.Notify(haltCh, os.Interrupt, syscall.SIGTERM)

	rotateCh := make(chan os.Signal, 1)
	signal.Notify(rotateCh, syscall.SIGHUP)

	srv := httpapi.New(&httpapi.Config{
		Service:        s.svc,
		Logger:         s.backend.GetLogger("httpapi"),
		MaxUploadBytes: s.cfg.Server.MaxUploadBytes(),
		Metrics:        s.cfg.Metrics.Enable,
	})
	if _, err := srv.Start(s.cfg.Server.Address); err != nil {
		return fmt.Errorf("failed to start HTTP server: %v", err)
	}
	defer srv.Halt()

	if s.startSweeper() {
		logger.Noticef("crypterd %s started, sweeping every %v", versioninfo.Short(), s.cfg.Server.SweepEvery())
	} else {
		logger.Noticef("crypterd %s started, in-process sweep disabled", versioninfo.Short())
	}

	for {
		select {
		case <-haltCh:
			logger.Notice("Shutting down")
			return nil
		case <-rotateCh:
			if err := s.backend.Rotate(); err != nil {
				logger.Errorf("Failed to rotate log file: %v", err)
			}
		}
	}
}
