// Package gateway: JSON-RPC 2.0 transport (spec §6 "Commitments RPC"),
// grounded in the teacher's rpc/server.go + rpc/types.go request dispatch
// shape but scoped to the gateway's own method set rather than the
// teacher's eth_ namespace.
package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth-fabric/fabric/internal/apierr"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/obsmetrics"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler is the gateway's JSON-RPC HTTP handler, exposing
// commitmentRequest, commitmentResult, slots, and fee (spec §6, §9's
// "trait-implemented RPC servers" note: a single owning value, collaborators
// injected at construction).
type Handler struct {
	svc     *Service
	log     *log.Logger
	metrics *obsmetrics.Registry
}

// NewHandler wraps svc with the JSON-RPC transport.
func NewHandler(svc *Service, metrics *obsmetrics.Registry, logger *log.Logger) *Handler {
	return &Handler{svc: svc, log: logger.Module("gateway.rpc"), metrics: metrics}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, nil, apierr.RPCCodeParse, "failed to read request body")
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, apierr.RPCCodeParse, "invalid JSON")
		return
	}

	start := time.Now()
	resp := h.dispatch(r.Context(), &req)
	// JSON-RPC errors ride inside a 200 envelope; the RPC error code (if
	// any) is the more useful metrics label than the HTTP status.
	status := http.StatusOK
	if resp.Error != nil {
		status = resp.Error.Code
	}
	if h.metrics != nil {
		h.metrics.Observe("gateway_rpc", req.Method, status, time.Since(start))
	}
	writeJSON(w, resp)
}

func (h *Handler) dispatch(ctx context.Context, req *rpcRequest) *rpcResponse {
	switch req.Method {
	case "commitmentRequest":
		return h.commitmentRequest(ctx, req)
	case "commitmentResult":
		return h.commitmentResult(ctx, req)
	case "slots":
		return h.slots(ctx, req)
	case "fee":
		return h.fee(ctx, req)
	default:
		return errorResponse(req.ID, apierr.RPCCodeMethodNotFound, "method not found")
	}
}

type commitmentRequestParams struct {
	Type    uint64         `json:"type"`
	Payload string         `json:"payload"` // hex
	Slasher common.Address `json:"slasher"`
}

func (h *Handler) commitmentRequest(ctx context.Context, req *rpcRequest) *rpcResponse {
	if len(req.Params) != 1 {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "expected exactly one param")
	}
	var p commitmentRequestParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "invalid commitmentRequest params")
	}
	payload, err := hex.DecodeString(trimHexPrefix(p.Payload))
	if err != nil {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "payload is not valid hex")
	}

	sc, err := h.svc.HandleCommitmentRequest(ctx, types.CommitmentRequest{
		CommitmentType: p.Type,
		Payload:        payload,
		Slasher:        p.Slasher,
	})
	if err != nil {
		h.log.Warn("commitmentRequest failed", "err", err)
		return errorResponse(req.ID, apierr.RPCCode(err), err.Error())
	}
	return &rpcResponse{JSONRPC: "2.0", Result: sc, ID: req.ID}
}

func (h *Handler) commitmentResult(ctx context.Context, req *rpcRequest) *rpcResponse {
	if len(req.Params) != 1 {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "expected exactly one param")
	}
	var hexHash string
	if err := json.Unmarshal(req.Params[0], &hexHash); err != nil {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "invalid requestHash param")
	}
	raw, err := hex.DecodeString(trimHexPrefix(hexHash))
	if err != nil || len(raw) != 32 {
		return errorResponse(req.ID, apierr.RPCCodeInvalidParams, "requestHash must be 32 bytes of hex")
	}
	var requestHash [32]byte
	copy(requestHash[:], raw)

	sc, err := h.svc.CommitmentResult(ctx, requestHash)
	if err != nil {
		return errorResponse(req.ID, apierr.RPCCode(err), err.Error())
	}
	return &rpcResponse{JSONRPC: "2.0", Result: sc, ID: req.ID}
}

// offering describes one commitment type available for a delegated slot.
type offering struct {
	ChainID         uint64   `json:"chain_id"`
	CommitmentTypes []uint64 `json:"commitment_types"`
}

type slotOffering struct {
	Slot      uint64     `json:"slot"`
	Offerings []offering `json:"offerings"`
}

type slotsResult struct {
	Slots []slotOffering `json:"slots"`
}

// slots enumerates delegated slots within the lookahead window (spec §6).
// Scoped to what the store can answer directly: every slot in
// [current_slot, current_slot+LookaheadWindowSize) with a stored
// delegation, each offering the one commitment type this gateway supports.
func (h *Handler) slots(ctx context.Context, req *rpcRequest) *rpcResponse {
	currentSlot := h.svc.clock.CurrentSlot(time.Now())
	lo := currentSlot
	hi := currentSlot + types.LookaheadWindowSize - 1 // Scan's upper bound is inclusive

	iter, err := h.svc.store.Scan(store.KindSignedDelegation, lo, hi)
	if err != nil {
		return errorResponse(req.ID, apierr.RPCCodeInternal, "scanning delegations failed")
	}
	defer iter.Release()

	result := slotsResult{}
	for iter.Next() {
		var sd types.SignedDelegation
		if err := json.Unmarshal(iter.Value(), &sd); err != nil {
			continue
		}
		result.Slots = append(result.Slots, slotOffering{
			Slot: sd.Message.Slot,
			Offerings: []offering{{
				ChainID:         1,
				CommitmentTypes: []uint64{types.InclusionCommitmentType},
			}},
		})
	}
	return &rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
}

// fee is an unimplemented stub: behavior beyond a type shape is undefined
// in the source this was distilled from (spec §9 Open Questions).
func (h *Handler) fee(ctx context.Context, req *rpcRequest) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", Result: map[string]any{}, ID: req.ID}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func errorResponse(id json.RawMessage, code int, msg string) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: msg}, ID: id}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	writeJSON(w, errorResponse(id, code, msg))
}
