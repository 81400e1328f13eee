package relayproxy

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

// HTTPForwarder posts a proof-stripped block to the downstream relay's
// block-submission endpoint (spec §4.6 step 5), distinct from Proxy's
// verbatim passthrough of unmatched requests.
type HTTPForwarder struct {
	downstreamURL string
	path          string
	http          *http.Client
}

// NewHTTPForwarder builds a forwarder posting to downstreamURL+path.
func NewHTTPForwarder(downstreamURL, path string, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		downstreamURL: downstreamURL,
		path:          path,
		http:          &http.Client{Timeout: timeout},
	}
}

// ForwardBlock submits block to the downstream relay.
func (f *HTTPForwarder) ForwardBlock(ctx context.Context, block types.SubmitBlockRequest) error {
	buf, err := json.Marshal(block)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.downstreamURL+f.path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relayproxy: downstream block submission returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
