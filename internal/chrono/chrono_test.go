package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S5: time_until_slot_ms with genesis_time_sec = now_sec must land in
// (11_000, 12_000] for slot 1.
func TestTimeUntilSlot_S5(t *testing.T) {
	now := time.Now()
	clock := NewClock(now.Unix())

	ms := clock.TimeUntilSlotMS(now, 1)

	require.Greater(t, ms, int64(11_000))
	require.LessOrEqual(t, ms, int64(12_000))
}

func TestCurrentSlot(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewClock(genesis.Unix())

	require.Equal(t, uint64(0), clock.CurrentSlot(genesis))
	require.Equal(t, uint64(1), clock.CurrentSlot(genesis.Add(SlotDuration)))
	require.Equal(t, uint64(5), clock.CurrentSlot(genesis.Add(5*SlotDuration+time.Second)))
	require.Equal(t, uint64(0), clock.CurrentSlot(genesis.Add(-time.Hour)))
}

func TestEpoch(t *testing.T) {
	require.Equal(t, uint64(0), Epoch(0))
	require.Equal(t, uint64(0), Epoch(31))
	require.Equal(t, uint64(1), Epoch(32))
	require.Equal(t, uint64(0), EpochStartSlot(0))
	require.Equal(t, uint64(64), EpochStartSlot(2))
}
