// Package beacon abstracts the beacon-node proposer-duties client the
// proposer and relay lookahead updater consume (spec §6 "Beacon API
// (consumed)"), explicitly out of scope for this core but specified here
// by the interface it must satisfy.
package beacon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eth-fabric/fabric/internal/types"
)

// Duty is one proposer-duty entry as returned by the beacon API.
type Duty struct {
	ValidatorIndex uint64
	PubKey         types.BLSPubKey
	Slot           uint64
}

// DutiesProvider fetches proposer duties for an epoch.
type DutiesProvider interface {
	ProposerDuties(ctx context.Context, epoch uint64) ([]Duty, error)
}

// dutiesResponse mirrors the standard beacon-node response envelope:
// {execution_optimistic, finalized, data: [{validator_index, pubkey, slot}]}.
type dutiesResponse struct {
	ExecutionOptimistic bool `json:"execution_optimistic"`
	Finalized           bool `json:"finalized"`
	Data                []struct {
		ValidatorIndex string `json:"validator_index"`
		PubKey         string `json:"pubkey"`
		Slot           string `json:"slot"`
	} `json:"data"`
}

// ErrAllEndpointsFailed is returned when the primary and every fallback
// endpoint fail to serve a request.
var ErrAllEndpointsFailed = errors.New("beacon: primary and all fallback endpoints failed")

// HTTPClient calls a primary beacon-node endpoint, falling back to an
// ordered list of alternates, each attempt bounded by the same per-request
// timeout (spec §5 Timeouts).
type HTTPClient struct {
	endpoints []string
	timeout   time.Duration
	client    *http.Client
}

// NewHTTPClient constructs a client trying primary first, then fallbacks
// in order, each attempt bounded by timeout.
func NewHTTPClient(primary string, fallbacks []string, timeout time.Duration) *HTTPClient {
	endpoints := append([]string{primary}, fallbacks...)
	return &HTTPClient{
		endpoints: endpoints,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

// ProposerDuties fetches proposer duties for epoch, trying each configured
// endpoint in order until one succeeds.
func (c *HTTPClient) ProposerDuties(ctx context.Context, epoch uint64) ([]Duty, error) {
	var lastErr error
	for _, base := range c.endpoints {
		duties, err := c.fetchFrom(ctx, base, epoch)
		if err == nil {
			return duties, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
	}
	return nil, ErrAllEndpointsFailed
}

func (c *HTTPClient) fetchFrom(ctx context.Context, base string, epoch uint64) ([]Duty, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/eth/v1/validator/duties/proposer/%d", base, epoch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beacon: %s returned status %d", base, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed dutiesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	return decodeDuties(parsed)
}

func decodeDuties(resp dutiesResponse) ([]Duty, error) {
	out := make([]Duty, 0, len(resp.Data))
	for _, d := range resp.Data {
		vi, err := strconv.ParseUint(d.ValidatorIndex, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("beacon: invalid validator_index %q: %w", d.ValidatorIndex, err)
		}
		slot, err := strconv.ParseUint(d.Slot, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("beacon: invalid slot %q: %w", d.Slot, err)
		}
		pub, err := decodeHexPubKey(d.PubKey)
		if err != nil {
			return nil, err
		}
		out = append(out, Duty{ValidatorIndex: vi, PubKey: pub, Slot: slot})
	}
	return out, nil
}

func decodeHexPubKey(hexStr string) (types.BLSPubKey, error) {
	var pub types.BLSPubKey
	s := strings.TrimPrefix(strings.TrimPrefix(hexStr, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return pub, fmt.Errorf("beacon: invalid pubkey %q: %w", hexStr, err)
	}
	if len(b) != 48 {
		return pub, fmt.Errorf("beacon: pubkey %q has wrong length", hexStr)
	}
	copy(pub[:], b)
	return pub, nil
}
