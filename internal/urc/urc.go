// Package urc ports the read-only half of the universal registry contract
// helpers from original_source/crates/urc: checking whether a proposer
// pubkey is registered as "ours" (spec §4.4 step 3). There is no write/
// registration path, not even a stub (spec.md's Non-goals, SPEC_FULL §12).
package urc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eth-fabric/fabric/internal/types"
)

// RegistryReader answers whether a BLS pubkey is registered.
type RegistryReader interface {
	IsRegistered(ctx context.Context, pubkey types.BLSPubKey) (bool, error)
}

// HTTPRegistryReader calls a configured registry endpoint to resolve
// registration status.
type HTTPRegistryReader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRegistryReader constructs a reader calling baseURL, bounded by
// timeout per request.
func NewHTTPRegistryReader(baseURL string, timeout time.Duration) *HTTPRegistryReader {
	return &HTTPRegistryReader{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type registrationStatusResponse struct {
	Registered bool `json:"registered"`
}

// IsRegistered queries the registry for pubkey's registration status.
func (r *HTTPRegistryReader) IsRegistered(ctx context.Context, pubkey types.BLSPubKey) (bool, error) {
	url := fmt.Sprintf("%s/registration/%x", r.baseURL, pubkey[:])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("urc: registry returned status %d", resp.StatusCode)
	}

	var parsed registrationStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, err
	}
	return parsed.Registered, nil
}

// StaticRegistryReader answers from a fixed in-memory set, used by tests
// and by deployments that pre-configure "our" validator set instead of
// querying an on-chain registry.
type StaticRegistryReader struct {
	ours map[types.BLSPubKey]bool
}

// NewStaticRegistryReader builds a reader over a fixed pubkey set.
func NewStaticRegistryReader(ours []types.BLSPubKey) *StaticRegistryReader {
	m := make(map[types.BLSPubKey]bool, len(ours))
	for _, pk := range ours {
		m[pk] = true
	}
	return &StaticRegistryReader{ours: m}
}

// IsRegistered reports whether pubkey is in the static set.
func (s *StaticRegistryReader) IsRegistered(ctx context.Context, pubkey types.BLSPubKey) (bool, error) {
	return s.ours[pubkey], nil
}

var (
	_ RegistryReader = (*HTTPRegistryReader)(nil)
	_ RegistryReader = (*StaticRegistryReader)(nil)
)
