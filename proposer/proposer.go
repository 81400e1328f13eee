// Package proposer implements the proposer delegation manager (spec
// §4.4): it polls upcoming proposer duties and atomically issues
// at-most-one BLS-signed delegation per future slot.
package proposer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth-fabric/fabric/internal/abiroot"
	"github.com/eth-fabric/fabric/internal/beacon"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/relayclient"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
	"github.com/eth-fabric/fabric/internal/urc"
)

// Config is the proposer's static configuration (spec §4.4 "(e) static
// config"): the gateway's delegate public key and committer address to
// delegate to, and the poll interval driving the main loop.
type Config struct {
	GatewayDelegatePubKey   types.BLSPubKey
	GatewayCommitterAddress common.Address
	PollInterval            time.Duration
	GenesisUnixSec          int64
}

// DefaultConfig returns sensible defaults for local development, matching
// the teacher's node/config.go DefaultConfig style.
func DefaultConfig() Config {
	return Config{
		PollInterval: 4 * time.Second,
	}
}

// Service is the proposer delegation manager.
type Service struct {
	store  store.KVStore
	beacon beacon.DutiesProvider
	signer signing.BLSSigner
	relay  relayclient.DelegationPoster
	urc    urc.RegistryReader
	cfg    Config
	clock  chrono.Clock
	log    *log.Logger
}

// New constructs a proposer Service from its collaborators (spec §4.4
// "(a)-(e)").
func New(st store.KVStore, dp beacon.DutiesProvider, signer signing.BLSSigner, relay relayclient.DelegationPoster, registry urc.RegistryReader, cfg Config, logger *log.Logger) *Service {
	return &Service{
		store:  st,
		beacon: dp,
		signer: signer,
		relay:  relay,
		urc:    registry,
		cfg:    cfg,
		clock:  chrono.NewClock(cfg.GenesisUnixSec),
		log:    logger.Module("proposer"),
	}
}

// Run executes the main loop once per configured poll interval until ctx
// is cancelled (spec §4.4: "Cancellation: loop exits on shutdown signal;
// in-flight signing requests complete normally").
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.log.Warn("tick failed", "err", err)
			}
		}
	}
}

// tick runs one iteration of the main loop (spec §4.4 steps 1-3).
func (s *Service) tick(ctx context.Context) error {
	currentSlot := s.clock.CurrentSlot(time.Now())
	currentEpoch := chrono.Epoch(currentSlot)

	var duties []beacon.Duty
	for _, epoch := range []uint64{currentEpoch, currentEpoch + 1} {
		d, err := s.beacon.ProposerDuties(ctx, epoch)
		if err != nil {
			return err
		}
		duties = append(duties, d...)
	}

	for _, duty := range duties {
		if duty.Slot <= currentSlot {
			continue
		}
		ours, err := s.urc.IsRegistered(ctx, duty.PubKey)
		if err != nil {
			s.log.Warn("registry lookup failed", "slot", duty.Slot, "err", err)
			continue
		}
		if !ours {
			continue
		}
		if err := s.handleDuty(ctx, duty); err != nil {
			s.log.Warn("handling duty failed", "slot", duty.Slot, "err", err)
		}
	}
	return nil
}

// handleDuty implements spec §4.4's equivocation guard, sign, persist,
// then transmit ordering for one duty.
func (s *Service) handleDuty(ctx context.Context, duty beacon.Duty) error {
	key := store.SignedDelegationKey(duty.Slot)
	has, err := s.store.Has(key)
	if err != nil {
		return err
	}
	if has {
		// Equivocation guard: a delegation for this slot already exists.
		return nil
	}

	delegation := types.Delegation{
		ProposerPubKey:   duty.PubKey,
		DelegatePubKey:   s.cfg.GatewayDelegatePubKey,
		CommitterAddress: s.cfg.GatewayCommitterAddress,
		Slot:             duty.Slot,
		Metadata:         nil,
	}

	root, err := abiroot.DelegationSigningRoot(delegation)
	if err != nil {
		return err
	}

	sig, err := s.signer.SignBLS(ctx, duty.PubKey, root)
	if err != nil {
		return err
	}

	signed := types.SignedDelegation{
		Message:   delegation,
		Nonce:     sig.Nonce,
		SigningID: sig.SigningID,
		Signature: sig.Signature,
	}

	// Persist before transmitting (spec §4.4, §5 ordering guarantee): a
	// crash between sign and send cannot lead to a second signature.
	encoded, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	if err := s.store.Put(key, encoded); err != nil {
		return err
	}

	if err := s.relay.PostDelegation(ctx, signed); err != nil {
		// Failures are logged but do not roll back the persisted record.
		s.log.Warn("posting delegation to relay failed", "slot", duty.Slot, "err", err)
	}
	return nil
}
