// Package httpapi serves the transfer service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"github.com/crypter-io/crypter-go/internal/api"
	"github.com/crypter-io/crypter-go/internal/apierrors"
	"github.com/crypter-io/crypter-go/internal/crypto"
	"github.com/crypter-io/crypter-go/internal/instrument"
	"github.com/crypter-io/crypter-go/internal/transfer"
	"github.com/crypter-io/crypter-go/internal/worker"
)

var (
	errMalformedUser = errors.New("malformed " + api.UserHeader + " header")
	errMissingUser   = errors.New(api.UserHeader + " header is required")
)

// Config configures a Server.
type Config struct {
	Service *transfer.Service
	Logger  *logging.Logger
	// MaxUploadBytes caps upload request bodies. Zero disables the cap.
	MaxUploadBytes int64
	// Metrics serves the Prometheus registry at /metrics.
	Metrics bool
}

// Server is the HTTP front end of a transfer Service.
type Server struct {
	worker.Worker

	svc       *transfer.Service
	log       *logging.Logger
	maxUpload int64
	handler   http.Handler
	srv       *http.Server
}

// New creates a Server.
func New(cfg *Config) *Server {
	s := &Server{
		svc:       cfg.Service,
		log:       cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
	}
	if s.log == nil {
		s.log = logging.MustGetLogger("httpapi")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transfer/{kind}", s.handleUpload)
	mux.HandleFunc("GET /api/transfer/{kind}/{id}/preview", s.handlePreview)
	mux.HandleFunc("GET /api/transfer/{kind}/{id}/ciphertext", s.handleCiphertext)
	mux.HandleFunc("GET /api/transfer/{kind}/{id}/signature", s.handleSignature)
	mux.HandleFunc("GET /api/user/transfers/{direction}", s.handleTransfers)
	if cfg.Metrics {
		mux.Handle("GET /metrics", instrument.Handler())
	}
	s.handler = mux
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on address and serves requests until Halt is called. It
// returns the bound address.
func (s *Server) Start(address string) (net.Addr, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.Go(func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server failed: %v", err)
		}
	})
	s.Go(func() {
		<-s.HaltCh()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.log.Warningf("HTTP shutdown: %v", err)
		}
	})

	s.log.Noticef("Listening on %v", l.Addr())
	return l.Addr(), nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind := transfer.Kind(r.PathValue("kind"))
	sender, err := requestor(r)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, apierrors.CodeUnknownError, err.Error())
		return
	}

	body := r.Body
	if s.maxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	req := &transfer.UploadRequest{
		Payload:   transfer.Payload{Kind: kind},
		Recipient: r.URL.Query().Get("recipient"),
	}
	var base *api.UploadRequestBase
	switch kind {
	case transfer.KindMessage:
		var m api.UploadMessageRequest
		err = json.NewDecoder(body).Decode(&m)
		req.Payload.Subject = m.Subject
		base = &m.UploadRequestBase
	case transfer.KindFile:
		var f api.UploadFileRequest
		err = json.NewDecoder(body).Decode(&f)
		req.Payload.FileName = f.FileName
		req.Payload.ContentType = f.ContentType
		base = &f.UploadRequestBase
	default:
		s.writeError(w, apierrors.ErrNotFound)
		return
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeStatus(w, http.StatusRequestEntityTooLarge, apierrors.CodeInvalidCiphertext,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeStatus(w, http.StatusBadRequest, apierrors.CodeInvalidCiphertext, "malformed upload body")
		return
	}

	req.Ciphertext = base.Ciphertext
	req.ClientIV = base.ClientIV
	req.Signature = base.DigitalSignature
	req.SignerPublicKey = base.DigitalSignaturePubKey
	req.AgreementPublicKey = base.KeyAgreementPublicKey
	req.ServerKey = base.ServerEncryptionKey
	req.LifetimeHours = base.RequestedLifetimeHours

	receipt, err := s.svc.Admit(r.Context(), sender, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &api.UploadResponse{ID: receipt.ID, Expiration: receipt.Expiration})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind, id, who, ok := s.retrievalArgs(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Preview(r.Context(), kind, id, who)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &api.PreviewResponse{
		ID:                    p.ID,
		Kind:                  string(p.Payload.Kind),
		SenderID:              p.SenderID,
		RecipientID:           p.RecipientID,
		Subject:               p.Payload.Subject,
		FileName:              p.Payload.FileName,
		ContentType:           p.Payload.ContentType,
		Size:                  p.Size,
		KeyAgreementPublicKey: string(p.AgreementPublicKey),
		Created:               p.Created,
		Expiration:            p.Expiration,
	})
}

func (s *Server) handleCiphertext(w http.ResponseWriter, r *http.Request) {
	kind, id, who, ok := s.retrievalArgs(w, r)
	if !ok {
		return
	}
	ct, err := s.svc.Ciphertext(r.Context(), kind, id, who)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &api.CiphertextResponse{
		Ciphertext:            encodeChunks(ct.Ciphertext, crypto.DefaultChunkSize),
		ClientIV:              crypto.ToBase64(ct.ClientIV),
		KeyAgreementPublicKey: string(ct.AgreementPublicKey),
	})
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	kind, id, who, ok := s.retrievalArgs(w, r)
	if !ok {
		return
	}
	sig, err := s.svc.Signature(r.Context(), kind, id, who)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &api.SignatureResponse{
		DigitalSignature:       crypto.ToBase64(sig.Signature),
		DigitalSignaturePubKey: string(sig.SignerPublicKey),
	})
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	who, err := requestor(r)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, apierrors.CodeUnknownError, err.Error())
		return
	}
	if who == nil {
		s.writeStatus(w, http.StatusUnauthorized, apierrors.CodeUnknownError, errMissingUser.Error())
		return
	}

	var summaries []*transfer.Summary
	switch r.PathValue("direction") {
	case api.DirectionReceived:
		summaries, err = s.svc.Received(r.Context(), *who)
	case api.DirectionSent:
		summaries, err = s.svc.Sent(r.Context(), *who)
	default:
		err = apierrors.ErrNotFound
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := &api.TransferListResponse{Transfers: make([]api.TransferSummary, 0, len(summaries))}
	for _, sum := range summaries {
		resp.Transfers = append(resp.Transfers, api.TransferSummary{
			ID:          sum.ID,
			Kind:        string(sum.Payload.Kind),
			SenderID:    sum.SenderID,
			RecipientID: sum.RecipientID,
			Subject:     sum.Payload.Subject,
			FileName:    sum.Payload.FileName,
			Size:        sum.Size,
			Created:     sum.Created,
			Expiration:  sum.Expiration,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// retrievalArgs extracts the path and requestor of a retrieval. A
// malformed id cannot name any transfer and is reported as NotFound.
func (s *Server) retrievalArgs(w http.ResponseWriter, r *http.Request) (transfer.Kind, uuid.UUID, *uuid.UUID, bool) {
	who, err := requestor(r)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, apierrors.CodeUnknownError, err.Error())
		return "", uuid.Nil, nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, apierrors.ErrNotFound)
		return "", uuid.Nil, nil, false
	}
	return transfer.Kind(r.PathValue("kind")), id, who, true
}

func requestor(r *http.Request) (*uuid.UUID, error) {
	v := r.Header.Get(api.UserHeader)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, errMalformedUser
	}
	return &id, nil
}

func encodeChunks(data []byte, size int) []string {
	chunks := make([]string, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		chunks = append(chunks, crypto.ToBase64(data[off:min(off+size, len(data))]))
	}
	return chunks
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apierrors.CodeOf(err)
	status := code.StatusCode()
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		// Internal failures are logged, not echoed.
		if code == apierrors.CodeUnknownError {
			s.log.Errorf("Request failed: %v", err)
		}
		msg = code.Err().Error()
	}
	s.writeStatus(w, status, code, msg)
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, code apierrors.Code, msg string) {
	s.writeJSON(w, status, &api.ErrorResponse{ErrorCode: string(code), Message: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debugf("Failed to write response: %v", err)
	}
}
