// Package relayproxy forwards unmatched relay requests verbatim to a
// downstream MEV-Boost relay (spec §4.6 "Fallback proxy"), whitelisting a
// small header set rather than copying all headers, grounded in
// original_source's crates/constraints/src/proxy.rs (SPEC_FULL §12).
package relayproxy

import (
	"io"
	"net/http"
	"strings"
)

// passlistPrefixes and passlistExact together define which request/response
// headers are forwarded; everything else (in particular hop-by-hop headers
// like Connection/Keep-Alive) is dropped.
var (
	passlistExact = map[string]bool{
		"Content-Type":   true,
		"Content-Length": true,
		"User-Agent":     true,
	}
	passlistPrefixes = []string{"Accept"}
)

func allowedHeader(name string) bool {
	if passlistExact[http.CanonicalHeaderKey(name)] {
		return true
	}
	for _, p := range passlistPrefixes {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), p) {
			return true
		}
	}
	return false
}

// Proxy forwards any request it handles to a fixed downstream base URL.
type Proxy struct {
	downstreamURL string
	http          *http.Client
}

// New constructs a Proxy targeting downstreamURL.
func New(downstreamURL string, client *http.Client) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	return &Proxy{downstreamURL: strings.TrimRight(downstreamURL, "/"), http: client}
}

// ServeHTTP forwards method, path, query, body, and whitelisted headers to
// the downstream relay, then copies its status, headers, and body back.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.downstreamURL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "proxy: bad request", http.StatusBadGateway)
		return
	}
	for name, values := range r.Header {
		if !allowedHeader(name) {
			continue
		}
		for _, v := range values {
			outReq.Header.Add(name, v)
		}
	}

	resp, err := p.http.Do(outReq)
	if err != nil {
		http.Error(w, "proxy: downstream relay unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if !allowedHeader(name) {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

var _ http.Handler = (*Proxy)(nil)
