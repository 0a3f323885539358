package check

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTPCheck probes a target with a GET request and classifies the response
// status. The target is the full URL; a bare host gets an http:// prefix.
type HTTPCheck struct {
	client *http.Client
}

func NewHTTPCheck() *HTTPCheck {
	return &HTTPCheck{
		client: &http.Client{},
	}
}

func (h *HTTPCheck) Run(ctx context.Context, spec Spec) Result {
	target := spec.Target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "http://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{OK: false, Info: fmt.Sprintf("invalid target %q: %v", spec.Target, err)}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{OK: false, Info: fmt.Sprintf("timeout after %s", spec.Timeout)}
		}
		return Result{OK: false, Info: fmt.Sprintf("request failed: %v", err)}
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{OK: true, Info: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return Result{OK: false, Info: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
}
