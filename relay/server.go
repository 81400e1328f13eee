// Package relay: REST transport (spec §6 "Constraints REST (relay)"),
// grounded in the teacher's rpc/server.go request-handling shape, adapted
// to a plain net/http.ServeMux instead of a single JSON-RPC endpoint since
// this surface is REST, not RPC. Unmatched routes fall through to
// internal/relayproxy.
package relay

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/eth-fabric/fabric/internal/apierr"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/obsmetrics"
	"github.com/eth-fabric/fabric/internal/relayproxy"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

// Server is the relay's REST surface, falling back to a proxy for any
// route it does not itself handle.
type Server struct {
	svc     *Service
	proxy   *relayproxy.Proxy
	metrics *obsmetrics.Registry
	log     *log.Logger
	mux     *http.ServeMux
}

// NewServer builds the relay's REST surface. proxy may be nil, in which
// case unmatched routes get a 404 instead of being forwarded downstream.
func NewServer(svc *Service, proxy *relayproxy.Proxy, metrics *obsmetrics.Registry, logger *log.Logger) *Server {
	s := &Server{svc: svc, proxy: proxy, metrics: metrics, log: logger.Module("relay.rest")}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/health", s.decorated("health", s.handleHealth))
	s.mux.HandleFunc("/constraints/v0/builder/capabilities", s.decorated("capabilities", s.handleCapabilities))
	s.mux.HandleFunc("/constraints", s.decorated("post_constraints", s.handlePostConstraints))
	s.mux.HandleFunc("/delegation", s.decorated("post_delegation", s.handlePostDelegation))
	s.mux.HandleFunc("/constraints/v0/relay/blocks_with_proofs", s.decorated("blocks_with_proofs", s.handleBlocksWithProofs))
	s.mux.HandleFunc("/constraints/v0/relay/constraints/", s.decorated("get_constraints", s.handleGetConstraints))
	s.mux.HandleFunc("/delegations/", s.decorated("get_delegations", s.handleGetDelegations))
	s.mux.HandleFunc("/", s.handleFallback)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) decorated(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Decorate(endpoint, h).ServeHTTP(w, r)
	}
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if s.proxy == nil {
		http.NotFound(w, r)
		return
	}
	s.proxy.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type capabilitiesResponse struct {
	ConstraintTypes []uint64 `json:"constraint_types"`
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, capabilitiesResponse{ConstraintTypes: []uint64{types.InclusionConstraintType}})
}

func (s *Server) handlePostDelegation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sd types.SignedDelegation
	if err := json.NewDecoder(r.Body).Decode(&sd); err != nil {
		writeAPIError(w, apierr.Validation("malformed_body", "cannot decode SignedDelegation"))
		return
	}
	if err := s.svc.HandleDelegation(r.Context(), sd); err != nil {
		s.log.Warn("POST delegation failed", "err", err)
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePostConstraints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sc types.SignedConstraints
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeAPIError(w, apierr.Validation("malformed_body", "cannot decode SignedConstraints"))
		return
	}
	if err := s.svc.HandleConstraints(r.Context(), sc); err != nil {
		s.log.Warn("POST constraints failed", "err", err)
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBlocksWithProofs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req BlocksWithProofsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.Validation("malformed_body", "cannot decode SubmitBlockRequestWithProofs"))
		return
	}
	if err := s.svc.HandleBlocksWithProofs(r.Context(), req); err != nil {
		s.log.Warn("POST blocks_with_proofs failed", "err", err)
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type getConstraintsResponse struct {
	Constraints []types.SignedConstraints `json:"constraints"`
}

// receiverAuthFromHeaders parses the X-Receiver-* headers (spec §6).
func receiverAuthFromHeaders(h http.Header) (ReceiverAuth, error) {
	pubHex := h.Get("X-Receiver-PublicKey")
	sigHex := h.Get("X-Receiver-Signature")
	if pubHex == "" && sigHex == "" {
		return ReceiverAuth{}, nil
	}
	pubBytes, err := hex.DecodeString(strings.TrimPrefix(pubHex, "0x"))
	if err != nil || len(pubBytes) != 48 {
		return ReceiverAuth{}, apierr.Validation("bad_receiver_pubkey", "X-Receiver-PublicKey must be 48 bytes of hex")
	}
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sigBytes) != 96 {
		return ReceiverAuth{}, apierr.Validation("bad_receiver_signature", "X-Receiver-Signature must be 96 bytes of hex")
	}
	var auth ReceiverAuth
	copy(auth.PublicKey[:], pubBytes)
	copy(auth.Signature[:], sigBytes)
	auth.Present = true
	return auth, nil
}

func (s *Server) handleGetConstraints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slotStr := strings.TrimPrefix(r.URL.Path, "/constraints/v0/relay/constraints/")
	slot, err := strconv.ParseUint(slotStr, 10, 64)
	if err != nil {
		writeAPIError(w, apierr.Validation("bad_slot", "slot must be a decimal integer"))
		return
	}

	auth, err := receiverAuthFromHeaders(r.Header)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	sc, err := s.svc.GetConstraints(r.Context(), slot, auth)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getConstraintsResponse{Constraints: []types.SignedConstraints{sc}})
}

type getDelegationsResponse struct {
	Delegations []types.SignedDelegation `json:"delegations"`
}

func (s *Server) handleGetDelegations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slotStr := strings.TrimPrefix(r.URL.Path, "/delegations/")
	slot, err := strconv.ParseUint(slotStr, 10, 64)
	if err != nil {
		writeAPIError(w, apierr.Validation("bad_slot", "slot must be a decimal integer"))
		return
	}

	raw, err := s.svc.store.Get(store.SignedDelegationKey(slot))
	if err != nil {
		if err == store.ErrNotFound {
			writeJSON(w, http.StatusOK, getDelegationsResponse{})
			return
		}
		writeAPIError(w, apierr.Dependency("store_error", "reading delegation", err))
		return
	}
	var sd types.SignedDelegation
	if err := json.Unmarshal(raw, &sd); err != nil {
		writeAPIError(w, apierr.Dependency("decode_error", "decoding delegation", err))
		return
	}
	writeJSON(w, http.StatusOK, getDelegationsResponse{Delegations: []types.SignedDelegation{sd}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	writeJSON(w, apierr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
