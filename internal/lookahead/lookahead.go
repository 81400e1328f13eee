// Package lookahead maintains the relay's slot -> proposer pubkey map used
// to authenticate incoming delegations (spec §4.6 "POST delegation").
// Supplements spec.md's interface-level description with the refresh
// cadence and pruning window from original_source's
// crates/inclusion/src/relay/services/lookahead_manager.rs (SPEC_FULL §12).
package lookahead

import (
	"context"
	"sync"
	"time"

	"github.com/eth-fabric/fabric/internal/beacon"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/types"
)

func defaultNow() time.Time { return time.Now() }

// Manager holds the current and next epoch's proposer duties, keyed by
// slot, pruning entries older than current_slot - LOOKAHEAD_WINDOW_SIZE.
type Manager struct {
	mu       sync.RWMutex
	entries  map[uint64]types.BLSPubKey
	clock    chrono.Clock
	beacon   beacon.DutiesProvider
	log      *log.Logger
}

// NewManager constructs a lookahead Manager sourcing duties from provider.
func NewManager(clock chrono.Clock, provider beacon.DutiesProvider, logger *log.Logger) *Manager {
	return &Manager{
		entries: make(map[uint64]types.BLSPubKey),
		clock:   clock,
		beacon:  provider,
		log:     logger.Module("relay.lookahead"),
	}
}

// Refresh fetches proposer duties for the current and next epoch and
// merges them into the map, then prunes slots older than
// current_slot - LOOKAHEAD_WINDOW_SIZE.
func (m *Manager) Refresh(ctx context.Context) error {
	now := m.clock.CurrentSlot(nowFunc())
	currentEpoch := chrono.Epoch(now)

	for _, epoch := range []uint64{currentEpoch, currentEpoch + 1} {
		duties, err := m.beacon.ProposerDuties(ctx, epoch)
		if err != nil {
			m.log.Warn("lookahead refresh failed", "epoch", epoch, "err", err)
			return err
		}
		m.mu.Lock()
		for _, d := range duties {
			m.entries[d.Slot] = d.PubKey
		}
		m.mu.Unlock()
	}

	m.prune(now)
	return nil
}

func (m *Manager) prune(currentSlot uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if currentSlot < types.LookaheadWindowSize {
		return
	}
	cutoff := currentSlot - types.LookaheadWindowSize
	for slot := range m.entries {
		if slot < cutoff {
			delete(m.entries, slot)
		}
	}
}

// ProposerAt returns the proposer pubkey assigned to slot, if known.
func (m *Manager) ProposerAt(slot uint64) (types.BLSPubKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pk, ok := m.entries[slot]
	return pk, ok
}

// Set directly records slot's proposer, used by tests seeding the
// lookahead without a beacon round trip (spec §8 S6).
func (m *Manager) Set(slot uint64, pubkey types.BLSPubKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[slot] = pubkey
}

// nowFunc is overridable in tests; production always uses time.Now.
var nowFunc = defaultNow
