package check

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCheck_Run(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	testCases := []struct {
		name       string
		target     string
		timeout    time.Duration
		expectOK   bool
		expectInfo string
	}{
		{
			name:       "healthy endpoint",
			target:     server.URL + "/health",
			timeout:    2 * time.Second,
			expectOK:   true,
			expectInfo: "status 200",
		},
		{
			name:       "bare host gets http scheme",
			target:     strings.TrimPrefix(server.URL, "http://") + "/health",
			timeout:    2 * time.Second,
			expectOK:   true,
			expectInfo: "status 200",
		},
		{
			name:       "unhealthy status",
			target:     server.URL + "/broken",
			timeout:    2 * time.Second,
			expectOK:   false,
			expectInfo: "unexpected status 503",
		},
		{
			name:       "timeout",
			target:     server.URL + "/slow",
			timeout:    50 * time.Millisecond,
			expectOK:   false,
			expectInfo: "timeout after",
		},
	}

	hc := NewHTTPCheck()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := Spec{
				Key:      "http:test",
				Kind:     KindHTTP,
				Target:   tc.target,
				Timeout:  tc.timeout,
				Interval: time.Second,
			}
			res := Run(context.Background(), hc, spec)
			assert.Equal(t, tc.expectOK, res.OK)
			assert.Contains(t, res.Info, tc.expectInfo)
		})
	}
}

func TestTCPCheck_Run(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, e := ln.Accept()
			if e != nil {
				return
			}
			conn.Close()
		}
	}()

	tc := NewTCPCheck()

	res := Run(context.Background(), tc, Spec{
		Key: "tcp:open", Kind: KindTCP, Target: ln.Addr().String(),
		Timeout: time.Second, Interval: time.Second,
	})
	assert.True(t, res.OK)
	assert.Contains(t, res.Info, "connected")

	// Grab a port with no listener behind it.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := closed.Addr().String()
	closed.Close()

	res = Run(context.Background(), tc, Spec{
		Key: "tcp:closed", Kind: KindTCP, Target: addr,
		Timeout: time.Second, Interval: time.Second,
	})
	assert.False(t, res.OK)
	assert.Contains(t, res.Info, "connect failed")
}
