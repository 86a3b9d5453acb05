package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Transfer kinds as they appear in URL paths.
const (
	KindMessage = "message"
	KindFile    = "file"
)

// Listing directions as they appear in URL paths.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

func uploadPath(kind, recipient string) string {
	path := "/api/transfer/" + kind
	if recipient != "" {
		path += "?" + url.Values{"recipient": {recipient}}.Encode()
	}
	return path
}

func transferPath(kind string, id uuid.UUID, part string) string {
	return fmt.Sprintf("/api/transfer/%s/%s/%s", url.PathEscape(kind), id, part)
}

// UploadMessage uploads a message envelope for recipient. An empty
// recipient makes the transfer anonymous.
func (c *Client) UploadMessage(ctx context.Context, recipient string, req *UploadMessageRequest) (*UploadResponse, error) {
	var result UploadResponse
	if err := c.Do(ctx, http.MethodPost, uploadPath(KindMessage, recipient), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadFile uploads a file envelope for recipient.
func (c *Client) UploadFile(ctx context.Context, recipient string, req *UploadFileRequest) (*UploadResponse, error) {
	var result UploadResponse
	if err := c.Do(ctx, http.MethodPost, uploadPath(KindFile, recipient), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Preview retrieves transfer metadata.
func (c *Client) Preview(ctx context.Context, kind string, id uuid.UUID) (*PreviewResponse, error) {
	var result PreviewResponse
	if err := c.Do(ctx, http.MethodGet, transferPath(kind, id, "preview"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ciphertext retrieves the sender-encrypted payload.
func (c *Client) Ciphertext(ctx context.Context, kind string, id uuid.UUID) (*CiphertextResponse, error) {
	var result CiphertextResponse
	if err := c.Do(ctx, http.MethodGet, transferPath(kind, id, "ciphertext"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Signature retrieves the sender's signature.
func (c *Client) Signature(ctx context.Context, kind string, id uuid.UUID) (*SignatureResponse, error) {
	var result SignatureResponse
	if err := c.Do(ctx, http.MethodGet, transferPath(kind, id, "signature"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfers lists the requesting user's received or sent transfers. The
// client must carry a user id.
func (c *Client) Transfers(ctx context.Context, direction string) (*TransferListResponse, error) {
	var result TransferListResponse
	if err := c.Do(ctx, http.MethodGet, "/api/user/transfers/"+url.PathEscape(direction), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
