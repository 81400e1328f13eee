// Package relayclient is the outbound HTTP client the proposer and
// gateway services use to reach the relay's REST surface (spec §6
// "Constraints REST (relay)"), bounded by the general 30s timeout (spec
// §5 Timeouts).
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eth-fabric/fabric/internal/types"
)

const defaultTimeout = 30 * time.Second

// DelegationPoster is the abstract collaborator the proposer service
// depends on (spec §4.4 "(d) abstract constraints client").
type DelegationPoster interface {
	PostDelegation(ctx context.Context, sd types.SignedDelegation) error
}

// ConstraintsPoster is the abstract collaborator the gateway's constraint
// scheduler depends on (spec §4.5.2 step 5).
type ConstraintsPoster interface {
	PostConstraints(ctx context.Context, sc types.SignedConstraints) error
}

// Client implements DelegationPoster and ConstraintsPoster against a
// relay's HTTP REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client bound to a relay base URL.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: defaultTimeout}}
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relayclient: %s returned status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}

// PostDelegation posts a signed delegation to POST /delegation.
func (c *Client) PostDelegation(ctx context.Context, sd types.SignedDelegation) error {
	return c.postJSON(ctx, "/delegation", sd)
}

// PostConstraints posts signed constraints to POST /constraints.
func (c *Client) PostConstraints(ctx context.Context, sc types.SignedConstraints) error {
	return c.postJSON(ctx, "/constraints", sc)
}

var (
	_ DelegationPoster  = (*Client)(nil)
	_ ConstraintsPoster = (*Client)(nil)
)
