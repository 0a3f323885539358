package check

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPCheck probes a target by opening a TCP connection to host:port.
type TCPCheck struct {
	dialer *net.Dialer
}

func NewTCPCheck() *TCPCheck {
	return &TCPCheck{
		dialer: &net.Dialer{},
	}
}

func (t *TCPCheck) Run(ctx context.Context, spec Spec) Result {
	start := time.Now()
	conn, err := t.dialer.DialContext(ctx, "tcp", spec.Target)
	if err != nil {
		if ctx.Err() != nil {
			return Result{OK: false, Info: fmt.Sprintf("timeout after %s", spec.Timeout)}
		}
		return Result{OK: false, Info: fmt.Sprintf("connect failed: %v", err)}
	}
	conn.Close()
	return Result{OK: true, Info: fmt.Sprintf("connected in %s", time.Since(start).Round(time.Millisecond))}
}
