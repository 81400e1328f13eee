// Package relay implements the relay constraints service (spec §4.6): it
// authenticates delegations and constraints against a proposer lookahead,
// serves signed constraints under two auth regimes, verifies submitted
// blocks' inclusion proofs, and gates forwarding to a downstream relay.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth-fabric/fabric/internal/abiroot"
	"github.com/eth-fabric/fabric/internal/apierr"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/lookahead"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/txtrie"
	"github.com/eth-fabric/fabric/internal/types"
)

// Config is the relay's static configuration.
type Config struct {
	GenesisUnixSec        int64
	LookaheadPollInterval time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{LookaheadPollInterval: 6 * time.Second}
}

// DownstreamForwarder submits a verified, proof-stripped block to the
// downstream MEV-Boost relay (spec §4.6 step 5). It is the relay's only
// outbound collaborator beyond the store; kept abstract so tests can
// assert on what gets forwarded without a live downstream relay.
type DownstreamForwarder interface {
	ForwardBlock(ctx context.Context, block types.SubmitBlockRequest) error
}

// Service holds the relay's collaborators: the shared store, a BLS
// verifier, the lookahead manager, and the downstream forwarder.
type Service struct {
	store      store.KVStore
	verifier   signing.Verifier
	lookahead  *lookahead.Manager
	downstream DownstreamForwarder
	cfg        Config
	clock      chrono.Clock
	log        *log.Logger
}

// New constructs a relay Service.
func New(st store.KVStore, verifier signing.Verifier, la *lookahead.Manager, downstream DownstreamForwarder, cfg Config, logger *log.Logger) *Service {
	return &Service{
		store:      st,
		verifier:   verifier,
		lookahead:  la,
		downstream: downstream,
		cfg:        cfg,
		clock:      chrono.NewClock(cfg.GenesisUnixSec),
		log:        logger.Module("relay.server"),
	}
}

// RunLookaheadUpdater refreshes the lookahead on a fixed interval until ctx
// is cancelled (spec §4.6 "Lookahead updater").
func (s *Service) RunLookaheadUpdater(ctx context.Context) error {
	interval := s.cfg.LookaheadPollInterval
	if interval <= 0 {
		interval = 6 * time.Second
	}
	if err := s.lookahead.Refresh(ctx); err != nil {
		s.log.Warn("initial lookahead refresh failed", "err", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.lookahead.Refresh(ctx); err != nil {
				s.log.Warn("lookahead refresh failed", "err", err)
			}
		}
	}
}

// HandleDelegation implements spec §4.6's "POST delegation" surface.
func (s *Service) HandleDelegation(ctx context.Context, sd types.SignedDelegation) error {
	d := sd.Message
	if d.CommitterAddress == (common.Address{}) {
		return apierr.Validation("zero_committer", "committer address must be non-zero")
	}
	currentSlot := s.clock.CurrentSlot(time.Now())
	if d.Slot <= currentSlot {
		return apierr.Validation("slot_in_past", "slot is not in the future")
	}

	root, err := abiroot.DelegationSigningRoot(d)
	if err != nil {
		return apierr.Validation("bad_pubkey_encoding", "cannot decode BLS pubkey")
	}
	ok, err := s.verifier.VerifyBLS(d.ProposerPubKey, root, sd.Signature)
	if err != nil || !ok {
		return apierr.Protocol("bad_signature", "proposer signature does not verify")
	}

	expected, known := s.lookahead.ProposerAt(d.Slot)
	if !known || expected != d.ProposerPubKey {
		return apierr.Protocol("proposer_mismatch", "delegation proposer does not match lookahead")
	}

	key := store.SignedDelegationKey(d.Slot)
	has, err := s.store.Has(key)
	if err != nil {
		return apierr.Dependency("store_error", "checking existing delegation", err)
	}
	if has {
		// T6: a second delegation for an already-delegated slot is
		// rejected; state is unchanged.
		return apierr.Protocol("equivocation", "delegation already exists for slot")
	}

	encoded, err := json.Marshal(sd)
	if err != nil {
		return apierr.Dependency("encode_error", "encoding delegation", err)
	}
	if err := s.store.Put(key, encoded); err != nil {
		return apierr.Dependency("store_error", "persisting delegation", err)
	}
	return nil
}

// HandleConstraints implements spec §4.6's "POST constraints" surface.
func (s *Service) HandleConstraints(ctx context.Context, sc types.SignedConstraints) error {
	m := sc.Message
	currentSlot := s.clock.CurrentSlot(time.Now())
	if m.Slot <= currentSlot {
		return apierr.Validation("slot_in_past", "slot is not in the future")
	}

	root, err := abiroot.ConstraintsMessageSigningRoot(m)
	if err != nil {
		return apierr.Validation("bad_pubkey_encoding", "cannot decode BLS pubkey")
	}
	ok, err := s.verifier.VerifyBLS(m.DelegatePubKey, root, sc.Signature)
	if err != nil || !ok {
		return apierr.Protocol("bad_signature", "delegate signature does not verify")
	}

	raw, err := s.store.Get(store.SignedDelegationKey(m.Slot))
	if err != nil {
		if err == store.ErrNotFound {
			return apierr.Validation("no_delegation_for_slot", "no delegation for slot")
		}
		return apierr.Dependency("store_error", "reading delegation", err)
	}
	var sd types.SignedDelegation
	if err := json.Unmarshal(raw, &sd); err != nil {
		return apierr.Dependency("decode_error", "decoding delegation", err)
	}
	if sd.Message.DelegatePubKey != m.DelegatePubKey {
		return apierr.Protocol("delegate_mismatch", "constraints delegate does not match pre-declared delegation")
	}

	encoded, err := json.Marshal(sc)
	if err != nil {
		return apierr.Dependency("encode_error", "encoding constraints", err)
	}
	// Overwrite semantics: idempotent retries are supported (spec §4.6,
	// §8 T5 is enforced by the gateway scheduler, not here).
	if err := s.store.Put(store.SignedConstraintsKey(m.Slot), encoded); err != nil {
		return apierr.Dependency("store_error", "persisting constraints", err)
	}
	return nil
}

// ReceiverAuth carries the headers required to read pre-slot constraints
// (spec §6 "Receiver auth headers").
type ReceiverAuth struct {
	PublicKey types.BLSPubKey
	Signature types.BLSSignature
	Present   bool
}

// ErrNoConstraints is returned when no constraints have been stored for the
// requested slot.
var ErrNoConstraints = apierr.Validation("no_constraints_for_slot", "no constraints stored for slot")

// GetConstraints implements spec §4.6's "GET constraints/{slot}" two-regime
// authentication (spec §8 T7).
func (s *Service) GetConstraints(ctx context.Context, slot uint64, auth ReceiverAuth) (types.SignedConstraints, error) {
	raw, err := s.store.Get(store.SignedConstraintsKey(slot))
	if err != nil {
		if err == store.ErrNotFound {
			return types.SignedConstraints{}, ErrNoConstraints
		}
		return types.SignedConstraints{}, apierr.Dependency("store_error", "reading constraints", err)
	}
	var sc types.SignedConstraints
	if err := json.Unmarshal(raw, &sc); err != nil {
		return types.SignedConstraints{}, apierr.Dependency("decode_error", "decoding constraints", err)
	}

	currentSlot := s.clock.CurrentSlot(time.Now())
	if currentSlot > slot {
		// Slot has passed: no authentication required.
		return sc, nil
	}
	if len(sc.Message.Receivers) == 0 {
		// Open question per spec §9: this variant bypasses auth when the
		// receivers list is empty.
		return sc, nil
	}

	if !auth.Present {
		return types.SignedConstraints{}, apierr.Validation("missing_receiver_auth", "receiver auth headers required")
	}

	allowed := false
	for _, r := range sc.Message.Receivers {
		if r == auth.PublicKey {
			allowed = true
			break
		}
	}
	if !allowed {
		return types.SignedConstraints{}, apierr.Protocol("receiver_not_authorized", "public key is not an authorized receiver")
	}

	root := slotSigningRoot(slot)
	ok, err := s.verifier.VerifyBLS(auth.PublicKey, root, auth.Signature)
	if err != nil || !ok {
		return types.SignedConstraints{}, apierr.Protocol("bad_signature", "receiver signature does not verify")
	}

	return sc, nil
}

// BlocksWithProofsRequest is the body of POST blocks_with_proofs.
type BlocksWithProofsRequest = types.SubmitBlockRequestWithProofs

// HandleBlocksWithProofs implements spec §4.6's "POST blocks_with_proofs"
// surface, forwarding the bare block downstream once proofs verify (spec
// §9: the bare variant is chosen because downstream MEV-Boost relays do
// not accept proofs).
func (s *Service) HandleBlocksWithProofs(ctx context.Context, req BlocksWithProofsRequest) error {
	raw, err := s.store.Get(store.SignedConstraintsKey(req.Block.Slot))
	if err != nil {
		if err == store.ErrNotFound {
			return apierr.Validation("no_constraints_for_slot", "no constraints stored for slot")
		}
		return apierr.Dependency("store_error", "reading constraints", err)
	}
	var sc types.SignedConstraints
	if err := json.Unmarshal(raw, &sc); err != nil {
		return apierr.Dependency("decode_error", "decoding constraints", err)
	}

	if len(req.Proofs.ConstraintTypes) != len(req.Proofs.Payloads) || len(req.Proofs.ConstraintTypes) > types.MaxConstraintsPerSlot {
		return apierr.Validation("malformed_proof_envelope", "constraint_types/payloads length mismatch or too large")
	}
	if len(req.Proofs.ConstraintTypes) != len(sc.Message.Constraints) {
		return apierr.Validation("proof_count_mismatch", "proof count does not match stored constraint count")
	}
	for i, ct := range req.Proofs.ConstraintTypes {
		if ct != sc.Message.Constraints[i].ConstraintType {
			return apierr.Validation("proof_order_mismatch", "proof ordering does not match stored constraints")
		}
		if ct != types.InclusionConstraintType {
			continue
		}
		storedPayload, err := types.DecodeInclusionPayload(sc.Message.Constraints[i].Payload)
		if err != nil {
			return apierr.Dependency("decode_error", "decoding stored inclusion payload", err)
		}
		var proof types.InclusionProof
		if err := rlp.DecodeBytes(req.Proofs.Payloads[i], &proof); err != nil {
			return apierr.Validation("malformed_proof", "cannot decode inclusion proof")
		}
		if crypto.Keccak256Hash(storedPayload.SignedTxRLP) != proof.TxHash {
			return apierr.Protocol("tx_hash_mismatch", "declared tx_hash does not match the committed transaction")
		}
	}

	tr, err := txtrie.Build(req.Block.Transactions)
	if err != nil {
		return apierr.Dependency("trie_error", "building transaction trie", err)
	}

	rlpProofs := types.ConstraintProofs{ConstraintTypes: req.Proofs.ConstraintTypes, Payloads: req.Proofs.Payloads}
	if err := txtrie.VerifyBatch(tr.Root(), rlpProofs); err != nil {
		return apierr.Protocol("proof_verification_failed", "inclusion proof verification failed: "+err.Error())
	}

	if err := s.downstream.ForwardBlock(ctx, req.Block); err != nil {
		return apierr.Dependency("downstream_unavailable", "forwarding block downstream", err)
	}
	return nil
}

func slotSigningRoot(slot uint64) (h common.Hash) {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(slot)
		slot >>= 8
	}
	return crypto.Keccak256Hash(b)
}
