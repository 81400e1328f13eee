package beacon

import (
	"context"

	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/types"
)

// MockProvider is an in-process DutiesProvider cycling a fixed validator
// set across slots, grounded in bin/beacon_mock.rs's shape. No test in the
// tree uses it, and it is never wired into a shipped binary (spec §1
// explicitly places the mock beacon node and spammer harness out of scope).
type MockProvider struct {
	validators []Duty // ValidatorIndex/PubKey populated, Slot ignored
}

// NewMockProvider builds a provider cycling through validators
// round-robin across slots within an epoch.
func NewMockProvider(validators []Duty) *MockProvider {
	return &MockProvider{validators: validators}
}

// ProposerDuties returns one duty per slot in the epoch, assigning
// validators round-robin.
func (m *MockProvider) ProposerDuties(ctx context.Context, epoch uint64) ([]Duty, error) {
	if len(m.validators) == 0 {
		return nil, nil
	}
	start := chrono.EpochStartSlot(epoch)
	out := make([]Duty, 0, chrono.SlotsPerEpoch)
	for i := uint64(0); i < chrono.SlotsPerEpoch; i++ {
		v := m.validators[i%uint64(len(m.validators))]
		out = append(out, Duty{
			ValidatorIndex: v.ValidatorIndex,
			PubKey:         v.PubKey,
			Slot:           start + i,
		})
	}
	return out, nil
}

// SingleValidatorMock is a convenience constructor for tests that only
// need one "ours" validator pubkey assigned to every slot.
func SingleValidatorMock(pubkey types.BLSPubKey) *MockProvider {
	return NewMockProvider([]Duty{{ValidatorIndex: 0, PubKey: pubkey}})
}
