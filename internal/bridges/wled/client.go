package wled

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
)

// DefaultTimeout bounds every WLED API request.
const DefaultTimeout = 2 * time.Second

// IconName is the icon assigned to probed WLED devices.
const IconName = "wled"

// Info is the subset of /json/info used to configure a device.
type Info struct {
	Name    string `json:"name"`
	Brand   string `json:"brand"`
	Version string `json:"ver"`
	MAC     string `json:"mac"`
	LEDs    struct {
		Count int `json:"count"`
		FPS   int `json:"fps"`
	} `json:"leds"`
}

// Client talks to WLED controllers.
type Client struct {
	http *http.Client
}

// NewClient creates a client using timeout for each request.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Info fetches /json/info from the controller at host.
func (c *Client) Info(ctx context.Context, host string) (Info, error) {
	var info Info
	if err := c.get(ctx, host, "json/info", &info); err != nil {
		return Info{}, err
	}
	if !strings.Contains(strings.ToUpper(info.Brand), "WLED") {
		return Info{}, fmt.Errorf("%s reports brand %q: %w", host, info.Brand, ErrIncompatible)
	}
	return info, nil
}

// Probe implements device.Prober: it returns the name, pixel count and
// icon reported by the controller.
func (c *Client) Probe(ctx context.Context, host string) (config.DeviceConfig, error) {
	info, err := c.Info(ctx, host)
	if err != nil {
		return config.DeviceConfig{}, err
	}
	return config.DeviceConfig{
		Name:       info.Name,
		IconName:   IconName,
		PixelCount: info.LEDs.Count,
		IPAddress:  host,
	}, nil
}

func (c *Client) get(ctx context.Context, host, endpoint string, out any) error {
	url := fmt.Sprintf("http://%s/%s", host, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRequestFailed, host, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %d", ErrRequestFailed, host, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
