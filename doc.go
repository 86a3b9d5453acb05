// Package crypter provides a Go client SDK for Crypter, an end-to-end
// encrypted message and file transfer service.
//
// Payloads are encrypted and signed on the client before upload. The
// server stores only ciphertext under a second, at-rest layer and
// deletes every transfer once its lifetime (1 to 24 hours) has elapsed.
//
// Basic usage:
//
//	client, err := crypter.New(crypter.WithBaseURL("https://crypter.example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anonymous transfer: the share key is the only way to open it.
//	receipt, err := client.SendMessage(ctx, "hello", strings.NewReader("hi there"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	received, err := client.Receive(ctx, crypter.KindMessage, receipt.ID, receipt.ShareKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(received.Plaintext))
//
// Transfers to a named recipient additionally need the recipient's
// public key, passed with [WithRecipientPublicKey], and are only
// retrievable by a client configured with that recipient's user id.
package crypter
