package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/protocol"
	"github.com/flashbots/river/tee"
	"github.com/go-chi/chi/v5"
)

// maxRequestBytes bounds signed request bodies.
const maxRequestBytes = 64 << 10

// AttestationSource is the part of the enclave the HTTP layer exposes.
type AttestationSource interface {
	Attest() (*tee.Attestation, error)
}

// ServiceConfig wires a NegotiationService.
type ServiceConfig struct {
	Ledger *negotiation.Ledger

	// Enclave serves GET /attestation. Optional.
	Enclave AttestationSource

	Protocol protocol.Config
	Log      *slog.Logger
}

// NegotiationService exposes a Ledger over HTTP.
type NegotiationService struct {
	ledger  *negotiation.Ledger
	enclave AttestationSource
	config  protocol.Config
	log     *slog.Logger
}

// NewNegotiationService creates the service.
func NewNegotiationService(cfg *ServiceConfig) (*NegotiationService, error) {
	if cfg == nil || cfg.Ledger == nil {
		return nil, errors.New("negotiation service requires a ledger")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	config := cfg.Protocol
	config.SealedInputs = cfg.Ledger.HasEnclave()

	return &NegotiationService{
		ledger:  cfg.Ledger,
		enclave: cfg.Enclave,
		config:  config,
		log:     log,
	}, nil
}

// RegisterRoutes registers HTTP routes for the service.
func (s *NegotiationService) RegisterRoutes(r chi.Router) {
	r.Get("/config", s.handleConfig)
	r.Get("/attestation", s.handleAttestation)

	r.Route("/negotiations", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/join", s.handleJoin)
		r.Post("/{id}/employer", s.handleSubmit(protocol.OpSubmitEmployer))
		r.Post("/{id}/candidate", s.handleSubmit(protocol.OpSubmitCandidate))
		r.Post("/{id}/finalize", s.handleFinalize)
	})
}

func (s *NegotiationService) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config)
}

func (s *NegotiationService) handleAttestation(w http.ResponseWriter, r *http.Request) {
	if s.enclave == nil {
		writeError(w, http.StatusNotFound, negotiation.Kind(negotiation.ErrEnclaveRequired), "no enclave configured")
		return
	}
	a, err := s.enclave.Attest()
	if err != nil {
		s.log.Error("attestation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", "attestation failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *NegotiationService) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, caller, ok := decodeSigned[protocol.CreateRequest](w, r)
	if !ok {
		return
	}
	if err := req.Expect(protocol.OpCreate, req.NegotiationID); err != nil {
		writeError(w, http.StatusForbidden, KindOperationMismatch, err.Error())
		return
	}

	terms := s.config.DefaultTerms
	if req.Terms != nil {
		terms = *req.Terms
	}

	v, err := s.ledger.Create(r.Context(), req.NegotiationID, caller, terms)
	s.respond(w, http.StatusCreated, v, err)
}

func (s *NegotiationService) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := s.ledger.Get(r.Context(), id)
	s.respond(w, http.StatusOK, v, err)
}

func (s *NegotiationService) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, caller, ok := decodeSigned[protocol.JoinRequest](w, r)
	if !ok {
		return
	}
	if err := req.Expect(protocol.OpJoin, id); err != nil {
		writeError(w, http.StatusForbidden, KindOperationMismatch, err.Error())
		return
	}

	v, err := s.ledger.Join(r.Context(), id, caller)
	s.respond(w, http.StatusOK, v, err)
}

func (s *NegotiationService) handleSubmit(op protocol.Operation) http.HandlerFunc {
	role, ok := op.Role()
	if !ok {
		panic(fmt.Sprintf("handleSubmit: %q is not a submit operation", op))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		req, caller, ok := decodeSigned[protocol.SubmitRequest](w, r)
		if !ok {
			return
		}
		if err := req.Expect(op, id); err != nil {
			writeError(w, http.StatusForbidden, KindOperationMismatch, err.Error())
			return
		}

		var (
			v   *negotiation.View
			err error
		)
		if role == negotiation.RoleEmployer {
			v, err = s.ledger.SubmitEmployer(r.Context(), id, caller, req.Submission())
		} else {
			v, err = s.ledger.SubmitCandidate(r.Context(), id, caller, req.Submission())
		}
		s.respond(w, http.StatusOK, v, err)
	}
}

func (s *NegotiationService) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, caller, ok := decodeSigned[protocol.FinalizeRequest](w, r)
	if !ok {
		return
	}
	if err := req.Expect(protocol.OpFinalize, id); err != nil {
		writeError(w, http.StatusForbidden, KindOperationMismatch, err.Error())
		return
	}

	v, err := s.ledger.Finalize(r.Context(), id, caller)
	s.respond(w, http.StatusOK, v, err)
}

// respond writes v, or maps err to its status and kind. Internal errors are
// logged and not echoed to the caller.
func (s *NegotiationService) respond(w http.ResponseWriter, status int, v *negotiation.View, err error) {
	if err == nil {
		writeJSON(w, status, v)
		return
	}

	kind := negotiation.Kind(err)
	code := statusForKind(kind)
	if code == http.StatusInternalServerError {
		s.log.Error("negotiation operation failed", "err", err)
		writeError(w, code, kind, "internal error")
		return
	}
	writeError(w, code, kind, err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (negotiation.ID, bool) {
	id, err := negotiation.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, KindMalformed, err.Error())
		return 0, false
	}
	return id, true
}

// decodeSigned reads a signed request and returns it with the verified
// signer identity.
func decodeSigned[T any](w http.ResponseWriter, r *http.Request) (*T, negotiation.Identity, bool) {
	signed, err := protocol.DecodeSigned[T](http.MaxBytesReader(w, r.Body, maxRequestBytes), maxRequestBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindMalformed, fmt.Sprintf("decoding request: %v", err))
		return nil, negotiation.Identity{}, false
	}

	req, caller, err := signed.Verify()
	if err != nil {
		writeError(w, http.StatusForbidden, KindInvalidSignature, fmt.Sprintf("invalid signature: %v", err))
		return nil, caller, false
	}
	return req, caller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}
