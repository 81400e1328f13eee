// Package chrono provides slot/epoch time arithmetic shared by all three
// pipeline services, mirroring the reference's SLOT_DURATION_MS/
// SLOTS_PER_EPOCH wire constants.
package chrono

import "time"

const (
	// SlotDurationMS is the Ethereum consensus-layer slot duration.
	SlotDurationMS = 12_000
	// SlotsPerEpoch is the number of slots in one epoch.
	SlotsPerEpoch = 32
)

// SlotDuration is SlotDurationMS as a time.Duration.
const SlotDuration = time.Duration(SlotDurationMS) * time.Millisecond

// Clock computes slot/epoch arithmetic relative to a fixed genesis time.
// Genesis is stored as Unix seconds, matching the beacon chain convention.
type Clock struct {
	genesisUnixSec int64
}

// NewClock returns a Clock anchored at the given genesis time (Unix
// seconds).
func NewClock(genesisUnixSec int64) Clock {
	return Clock{genesisUnixSec: genesisUnixSec}
}

// GenesisUnixSec returns the clock's genesis time.
func (c Clock) GenesisUnixSec() int64 {
	return c.genesisUnixSec
}

// SlotStart returns the wall-clock time at which the given slot begins.
func (c Clock) SlotStart(slot uint64) time.Time {
	genesis := time.Unix(c.genesisUnixSec, 0)
	return genesis.Add(time.Duration(slot) * SlotDuration)
}

// CurrentSlot returns the slot containing the given instant. Instants
// before genesis return slot 0.
func (c Clock) CurrentSlot(now time.Time) uint64 {
	genesis := time.Unix(c.genesisUnixSec, 0)
	if now.Before(genesis) {
		return 0
	}
	elapsed := now.Sub(genesis)
	return uint64(elapsed / SlotDuration)
}

// TimeUntilSlot returns how long from now until the given slot begins.
// Negative durations mean the slot has already started.
func (c Clock) TimeUntilSlot(now time.Time, slot uint64) time.Duration {
	return c.SlotStart(slot).Sub(now)
}

// TimeUntilSlotMS is TimeUntilSlot in milliseconds, matching the
// reference's time_until_slot_ms helper (see spec scenario S5).
func (c Clock) TimeUntilSlotMS(now time.Time, slot uint64) int64 {
	return c.TimeUntilSlot(now, slot).Milliseconds()
}

// Epoch returns the epoch containing the given slot.
func Epoch(slot uint64) uint64 {
	return slot / SlotsPerEpoch
}

// EpochStartSlot returns the first slot of the given epoch.
func EpochStartSlot(epoch uint64) uint64 {
	return epoch * SlotsPerEpoch
}
