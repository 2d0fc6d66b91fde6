package ai

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"dcaadvisor/pkg/errors"
)

// transportError classifies a failed round trip to a raw HTTP backend.
func transportError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "send %s request", name)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(errors.ErrProviderTimeout, "send %s request: %v", name, err)
	}
	return errors.Wrapf(errors.ErrProviderUnreachable, "send %s request: %v", name, err)
}

// statusError maps a non-200 reply to a sentinel. Both OpenAI-style and
// Anthropic-style bodies carry {"error": {"type", "message"}}.
func statusError(name string, status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		detail = errResp.Error.Type + " - " + errResp.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.Wrapf(errors.ErrRateLimitExceeded, "%s API error (%d): %s", name, status, detail)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return errors.Wrapf(errors.ErrProviderTimeout, "%s API error (%d): %s", name, status, detail)
	case status >= 500:
		// 529 is Anthropic's "overloaded"
		return errors.Wrapf(errors.ErrProviderUnreachable, "%s API error (%d): %s", name, status, detail)
	default:
		return errors.Wrapf(errors.ErrExternal, "%s API error (%d): %s", name, status, detail)
	}
}
