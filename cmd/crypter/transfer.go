package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	crypter "github.com/crypter-io/crypter-go"
)

type sendFlags struct {
	to       string
	toKey    string
	keys     string
	lifetime int
}

func (f *sendFlags) options() ([]crypter.SendOption, error) {
	opts := []crypter.SendOption{crypter.WithLifetimeHours(f.lifetime)}
	if f.to != "" {
		opts = append(opts, crypter.WithRecipient(f.to))
	}
	if f.toKey != "" {
		pem, err := os.ReadFile(f.toKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crypter.WithRecipientPublicKey(pem))
	}
	if f.keys != "" {
		keys, err := loadKeys(f.keys)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crypter.WithSenderKeys(keys))
	}
	return opts, nil
}

func newSendCommand(g *globals) *cobra.Command {
	flags := &sendFlags{}
	var subject, contentType string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Encrypt, sign and upload a message or file",
	}
	cmd.PersistentFlags().StringVar(&flags.to, "to", "", "recipient user name")
	cmd.PersistentFlags().StringVar(&flags.toKey, "to-key", "", "recipient agreement public key (PEM file)")
	cmd.PersistentFlags().StringVar(&flags.keys, "keys", "", "sign with this key file instead of an ephemeral key")
	cmd.PersistentFlags().IntVar(&flags.lifetime, "lifetime", crypter.DefaultLifetimeHours, "hours the server keeps the transfer (1-24)")

	message := &cobra.Command{
		Use:   "message [file]",
		Short: "Send a message read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}

			r := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			receipt, err := c.SendMessage(cmd.Context(), subject, r, opts...)
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	message.Flags().StringVar(&subject, "subject", "", "message subject")

	file := &cobra.Command{
		Use:   "file <path>",
		Short: "Send a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ct := contentType
			if ct == "" {
				ct = mime.TypeByExtension(filepath.Ext(args[0]))
			}
			receipt, err := c.SendFile(cmd.Context(), filepath.Base(args[0]), ct, f, opts...)
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	file.Flags().StringVar(&contentType, "content-type", "", "content type (default: guessed from the extension)")

	cmd.AddCommand(message, file)
	return cmd
}

func printReceipt(w io.Writer, r *crypter.Receipt) {
	fmt.Fprintf(w, "id:         %s\n", r.ID)
	fmt.Fprintf(w, "kind:       %s\n", r.Kind)
	fmt.Fprintf(w, "expiration: %s\n", r.Expiration.Format(time.RFC3339))
	if r.ShareKey != nil {
		fmt.Fprintf(w, "share key:\n%s", r.ShareKey)
	}
}

func parseTransfer(args []string) (crypter.Kind, uuid.UUID, error) {
	kind := crypter.Kind(args[0])
	if kind != crypter.KindMessage && kind != crypter.KindFile {
		return "", uuid.Nil, fmt.Errorf("unknown transfer kind %q", args[0])
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid transfer id: %v", err)
	}
	return kind, id, nil
}

func newPreviewCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <message|file> <id>",
		Short: "Show the metadata of a transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseTransfer(args)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			p, err := c.Preview(cmd.Context(), kind, id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:         %s\n", p.ID)
			fmt.Fprintf(w, "kind:       %s\n", p.Kind)
			if p.Kind == crypter.KindMessage {
				fmt.Fprintf(w, "subject:    %s\n", p.Subject)
			} else {
				fmt.Fprintf(w, "file name:  %s\n", p.FileName)
				fmt.Fprintf(w, "type:       %s\n", p.ContentType)
			}
			if p.SenderID != nil {
				fmt.Fprintf(w, "sender:     %s\n", p.SenderID)
			}
			fmt.Fprintf(w, "size:       %d\n", p.Size)
			fmt.Fprintf(w, "created:    %s\n", p.Created.Format(time.RFC3339))
			fmt.Fprintf(w, "expiration: %s\n", p.Expiration.Format(time.RFC3339))
			return nil
		},
	}
}

func newListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "list <received|sent>",
		Short:     "List your unexpired transfers",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"received", "sent"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			var summaries []crypter.Summary
			if args[0] == "sent" {
				summaries, err = c.Sent(cmd.Context())
			} else {
				summaries, err = c.Received(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, s := range summaries {
				title := s.Subject
				if s.Kind == crypter.KindFile {
					title = s.FileName
				}
				fmt.Fprintf(w, "%s  %-7s  %s  expires %s\n", s.ID, s.Kind, title, s.Expiration.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newReceiveCommand(g *globals) *cobra.Command {
	var keysFile, shareKeyFile, signerFile, out string

	cmd := &cobra.Command{
		Use:   "receive <message|file> <id>",
		Short: "Download, decrypt and verify a transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseTransfer(args)
			if err != nil {
				return err
			}

			var privateKey []byte
			switch {
			case keysFile != "" && shareKeyFile != "":
				return errors.New("--keys and --share-key are mutually exclusive")
			case keysFile != "":
				keys, err := loadKeys(keysFile)
				if err != nil {
					return err
				}
				defer keys.Wipe()
				privateKey = keys.AgreementPrivateKey()
			case shareKeyFile != "":
				if privateKey, err = os.ReadFile(shareKeyFile); err != nil {
					return err
				}
			default:
				return errors.New("one of --keys or --share-key is required")
			}

			var opts []crypter.ReceiveOption
			if signerFile != "" {
				pem, err := os.ReadFile(signerFile)
				if err != nil {
					return err
				}
				opts = append(opts, crypter.WithTrustedSigner(pem))
			}

			c, err := g.client()
			if err != nil {
				return err
			}
			received, err := c.Receive(cmd.Context(), kind, id, privateKey, opts...)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(received.Plaintext)
				return err
			}
			return os.WriteFile(out, received.Plaintext, 0o600)
		},
	}

	cmd.Flags().StringVar(&keysFile, "keys", "", "your key file")
	cmd.Flags().StringVar(&shareKeyFile, "share-key", "", "share key of an anonymous transfer (PEM file)")
	cmd.Flags().StringVar(&signerFile, "signer", "", "require this signing public key (PEM file)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the payload here instead of stdout")
	return cmd
}
