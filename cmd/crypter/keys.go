package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	crypter "github.com/crypter-io/crypter-go"
)

func newKeygenCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a long-term key file",
		Long: `keygen writes a key file holding your private agreement and signing
keys, and writes the public halves next to it as <name>.agreement.pem and
<name>.signing.pem for distribution to senders.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("key file %s already exists", out)
			}

			keys, err := crypter.GenerateKeys()
			if err != nil {
				return err
			}
			defer keys.Wipe()

			data, err := json.MarshalIndent(keys.Export(), "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}

			base := strings.TrimSuffix(out, ".json")
			agreement := base + ".agreement.pem"
			signing := base + ".signing.pem"
			if err := os.WriteFile(agreement, keys.AgreementPublicKey(), 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(signing, keys.SigningPublicKey(), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s, %s and %s\n", out, agreement, signing)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "crypter.json", "key file to write")
	return cmd
}

func loadKeys(path string) (*crypter.Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f crypter.KeyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", crypter.ErrInvalidKeyFile, err)
	}
	return crypter.ImportKeys(&f)
}
