// Package control changes device state for scenario testing through the
// form-style control endpoint.
package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/crankwatch/internal/capability"
)

// CapabilityControl is the logical capability the client consumes.
const CapabilityControl = "control"

const controlPath = "/simulation-toggle"

// ErrDisabled reports that the control endpoint is absent from this build.
var ErrDisabled = fmt.Errorf("control endpoint absent in this build")

// Client drives the device control endpoint.
type Client struct {
	client  *http.Client
	base    string
	caps    *capability.Map
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a control client. A zero timeout defaults to 10s.
func NewClient(client *http.Client, base string, caps *capability.Map, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		caps:    caps,
		timeout: timeout,
		logger:  logger,
	}
}

// Set posts url-encoded parameters to the control endpoint. A 404 disables
// the control capability for the rest of the run and returns ErrDisabled;
// any other failure is an ordinary, non-fatal error for the caller to
// record.
func (c *Client) Set(ctx context.Context, params url.Values) error {
	if c.caps != nil && !c.caps.Available(CapabilityControl) {
		return ErrDisabled
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.base+controlPath, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("control request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if capability.IsDisabledStatus(resp.StatusCode) {
		if c.caps != nil {
			c.caps.Disable(CapabilityControl)
		}
		c.logger.Info("control endpoint disabled for this run")
		return ErrDisabled
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("control request: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ToggleSimulation flips the device's simulation mode, the scenario the
// original diagnostic pages expose.
func (c *Client) ToggleSimulation(ctx context.Context, enabled bool) error {
	return c.Set(ctx, url.Values{"simulation": {fmt.Sprintf("%t", enabled)}})
}
