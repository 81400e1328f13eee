// Package gateway implements the gateway commitment/constraint engine
// (spec §4.5): a per-request commitment RPC handler and a background
// constraint scheduler that share the slot-keyed store.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eth-fabric/fabric/internal/abiroot"
	"github.com/eth-fabric/fabric/internal/apierr"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/relayclient"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

// Config is the gateway's static configuration.
type Config struct {
	DelegatePubKey        types.BLSPubKey
	Receivers             []types.BLSPubKey
	GenesisUnixSec        int64
	SchedulerPollInterval time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{SchedulerPollInterval: 250 * time.Millisecond}
}

// Service couples the commitment RPC handler and the constraint
// scheduler over their shared store.
type Service struct {
	store  store.KVStore
	signer signing.Signer
	relay  relayclient.ConstraintsPoster
	cfg    Config
	clock  chrono.Clock
	log    *log.Logger
}

// New constructs a gateway Service.
func New(st store.KVStore, signer signing.Signer, relay relayclient.ConstraintsPoster, cfg Config, logger *log.Logger) *Service {
	return &Service{
		store:  st,
		signer: signer,
		relay:  relay,
		cfg:    cfg,
		clock:  chrono.NewClock(cfg.GenesisUnixSec),
		log:    logger.Module("gateway"),
	}
}

// HandleCommitmentRequest implements the commitment RPC handler's 8-step
// flow (spec §4.5.1).
func (s *Service) HandleCommitmentRequest(ctx context.Context, req types.CommitmentRequest) (types.SignedCommitment, error) {
	if req.CommitmentType != types.InclusionCommitmentType {
		return types.SignedCommitment{}, apierr.Validation("commitment_type_unsupported", "unsupported commitment type")
	}

	payload, err := types.DecodeInclusionPayload(req.Payload)
	if err != nil {
		return types.SignedCommitment{}, apierr.Validation("malformed_payload", "cannot decode inclusion payload")
	}

	currentSlot := s.clock.CurrentSlot(time.Now())
	if payload.Slot <= currentSlot {
		return types.SignedCommitment{}, apierr.Validation("slot_in_past", "slot is not in the future")
	}

	signedDelegation, err := s.loadDelegation(payload.Slot)
	if err != nil {
		return types.SignedCommitment{}, err
	}

	requestHash := abiroot.CommitmentRequestSigningRoot(req)

	commitment := types.Commitment{
		CommitmentType: req.CommitmentType,
		Payload:        req.Payload,
		RequestHash:    requestHash,
		Slasher:        req.Slasher,
	}
	commitmentRoot := abiroot.CommitmentSigningRoot(commitment)

	// Sign using the committer address from the governing delegation, not
	// an arbitrary gateway key (spec §4.5.1 step 5).
	ecdsaSig, err := s.signer.SignECDSA(ctx, signedDelegation.Message.CommitterAddress, commitmentRoot)
	if err != nil {
		return types.SignedCommitment{}, apierr.Dependency("signer_unavailable", "signing commitment", err)
	}

	signedCommitment := types.SignedCommitment{
		Commitment: commitment,
		Nonce:      ecdsaSig.Nonce,
		SigningID:  ecdsaSig.SigningID,
		Signature:  ecdsaSig.Signature,
	}

	constraint := types.Constraint{
		ConstraintType: types.InclusionConstraintType,
		Payload:        req.Payload,
	}

	commitmentBytes, err := json.Marshal(signedCommitment)
	if err != nil {
		return types.SignedCommitment{}, apierr.Dependency("encode_error", "encoding signed commitment", err)
	}
	constraintBytes, err := json.Marshal(constraint)
	if err != nil {
		return types.SignedCommitment{}, apierr.Dependency("encode_error", "encoding constraint", err)
	}

	// Atomically store both (spec §4.5.1 step 7 / §8 T2): either both
	// appear or neither.
	batch := s.store.NewBatch()
	batch.Put(store.SignedCommitmentKey(requestHash), commitmentBytes)
	batch.Put(store.RawConstraintKey(payload.Slot, requestHash), constraintBytes)
	if err := batch.Write(); err != nil {
		return types.SignedCommitment{}, apierr.Dependency("store_error", "persisting commitment+constraint", err)
	}

	return signedCommitment, nil
}

func (s *Service) loadDelegation(slot uint64) (types.SignedDelegation, error) {
	raw, err := s.store.Get(store.SignedDelegationKey(slot))
	if err != nil {
		if err == store.ErrNotFound {
			return types.SignedDelegation{}, apierr.Validation("no_delegation_for_slot", "no delegation for slot")
		}
		return types.SignedDelegation{}, apierr.Dependency("store_error", "reading delegation", err)
	}
	var sd types.SignedDelegation
	if err := json.Unmarshal(raw, &sd); err != nil {
		return types.SignedDelegation{}, apierr.Dependency("decode_error", "decoding stored delegation", err)
	}
	return sd, nil
}

// CommitmentResult returns the previously issued SignedCommitment for a
// request hash.
func (s *Service) CommitmentResult(ctx context.Context, requestHash [32]byte) (types.SignedCommitment, error) {
	raw, err := s.store.Get(store.SignedCommitmentKey(requestHash))
	if err != nil {
		if err == store.ErrNotFound {
			return types.SignedCommitment{}, apierr.Validation("not_found", "no commitment for request hash")
		}
		return types.SignedCommitment{}, apierr.Dependency("store_error", "reading commitment", err)
	}
	var sc types.SignedCommitment
	if err := json.Unmarshal(raw, &sc); err != nil {
		return types.SignedCommitment{}, apierr.Dependency("decode_error", "decoding commitment", err)
	}
	return sc, nil
}

// Run drives the constraint scheduler until ctx is cancelled (spec
// §4.5.2): each poll tick, check whether next slot's constraints are due
// for release and, if so, run it exactly once.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.SchedulerPollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.schedulerTick(ctx); err != nil {
				s.log.Warn("scheduler tick failed", "err", err)
			}
		}
	}
}

// schedulerTick implements one pass of spec §4.5.2's release procedure for
// target_slot = current_slot + 1.
func (s *Service) schedulerTick(ctx context.Context) error {
	currentSlot := s.clock.CurrentSlot(time.Now())
	targetSlot := currentSlot + 1

	already, err := s.store.Has(store.FinalizationFlagKey(targetSlot))
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	signedDelegation, err := s.loadDelegation(targetSlot)
	if err != nil {
		if e, ok := apierr.As(err); ok && e.Stratum == apierr.StratumValidation {
			// No delegation for the upcoming slot: nothing to release.
			return nil
		}
		return err
	}

	until := s.clock.TimeUntilSlotMS(time.Now(), targetSlot)
	triggerAt := until - types.ConstraintTriggerOffsetMS
	if triggerAt > 0 {
		return nil
	}

	return s.release(ctx, targetSlot, signedDelegation)
}

// release assembles, signs, and transmits the ConstraintsMessage for slot,
// then marks the slot finalized strictly after a successful POST (spec
// §4.5.2 step 5, §8 T3).
func (s *Service) release(ctx context.Context, slot uint64, signedDelegation types.SignedDelegation) error {
	iter, err := s.store.Scan(store.KindRawConstraint, slot, slot)
	if err != nil {
		return err
	}
	defer iter.Release()

	var constraints []types.Constraint
	for iter.Next() {
		var c types.Constraint
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return err
		}
		constraints = append(constraints, c)
		if len(constraints) >= types.MaxConstraintsPerSlot {
			break
		}
	}

	if len(constraints) == 0 {
		return nil
	}

	message := types.ConstraintsMessage{
		ProposerPubKey: signedDelegation.Message.ProposerPubKey,
		DelegatePubKey: signedDelegation.Message.DelegatePubKey,
		Slot:           slot,
		Constraints:    constraints,
		Receivers:      s.cfg.Receivers,
	}

	root, err := abiroot.ConstraintsMessageSigningRoot(message)
	if err != nil {
		return err
	}

	sig, err := s.signer.SignBLS(ctx, s.cfg.DelegatePubKey, root)
	if err != nil {
		return err
	}

	signed := types.SignedConstraints{
		Message:   message,
		Nonce:     sig.Nonce,
		SigningID: sig.SigningID,
		Signature: sig.Signature,
	}

	if err := s.relay.PostConstraints(ctx, signed); err != nil {
		return err
	}

	// Persist the signed message and set the finalization flag only after
	// transmission succeeds; a crash before this point simply retries on
	// the next tick.
	encoded, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	batch := s.store.NewBatch()
	batch.Put(store.SignedConstraintsKey(slot), encoded)
	batch.Put(store.FinalizationFlagKey(slot), []byte{1})
	return batch.Write()
}
