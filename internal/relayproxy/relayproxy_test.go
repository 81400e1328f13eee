package relayproxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProxy_ForwardsAllowedHeadersOnly(t *testing.T) {
	var gotContentType, gotConnection string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotConnection = r.Header.Get("Connection")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer downstream.Close()

	proxy := New(downstream.URL, downstream.Client())
	frontend := httptest.NewServer(proxy)
	defer frontend.Close()

	req, err := http.NewRequest(http.MethodGet, frontend.URL+"/whatever", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "keep-alive")

	resp, err := frontend.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "application/json", gotContentType)
	require.Empty(t, gotConnection)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
