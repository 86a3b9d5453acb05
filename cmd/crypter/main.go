// Command crypter sends and receives Crypter transfers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	crypter "github.com/crypter-io/crypter-go"
)

// globals holds the flags shared by every subcommand.
type globals struct {
	server string
	user   string
}

func (g *globals) client() (*crypter.Client, error) {
	opts := []crypter.Option{crypter.WithBaseURL(g.server)}
	if g.user != "" {
		id, err := uuid.Parse(g.user)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crypter.WithUserID(id))
	}
	return crypter.New(opts...)
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "crypter",
		Short: "End-to-end encrypted message and file transfer",
		Long: `crypter encrypts and signs messages and files locally, uploads them to a
Crypter server, and downloads and opens transfers addressed to you.

A transfer sent without --to-key is anonymous: crypter prints a share key
that, together with the transfer id, is all anyone needs to open it.

CRYPTER_SERVER and CRYPTER_USER may also be set in a .env file in the
working directory.`,
		Example: `  # Create a long-term key file
  crypter keygen --out alice.json

  # Send an anonymous message
  echo "hi" | crypter send message --subject greetings

  # Send a file to a named user
  crypter send file report.pdf --to alice --to-key alice.agreement.pem --user $BOB_ID

  # Open it
  crypter receive file <id> --keys alice.json --user $ALICE_ID --out report.pdf`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.server, "server", "s", envOr("CRYPTER_SERVER", "http://127.0.0.1:8080"),
		"Crypter server URL")
	cmd.PersistentFlags().StringVarP(&g.user, "user", "u", os.Getenv("CRYPTER_USER"),
		"your user id, as known to the server")

	cmd.AddCommand(
		newKeygenCommand(),
		newSendCommand(g),
		newPreviewCommand(g),
		newListCommand(g),
		newReceiveCommand(g),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnv reads CRYPTER_* defaults from a .env file in the working
// directory, if one exists. Variables already set win.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if err := loadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "crypter: %v\n", err)
		os.Exit(1)
	}
	if err := fang.Execute(
		context.Background(),
		newRootCommand(),
		fang.WithVersion(versioninfo.Short()),
	); err != nil {
		os.Exit(1)
	}
}
