package wled

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient points a Client at srv, returning the host to probe.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, string) {
	t.Helper()
	c := NewClient(time.Second)
	return c, strings.TrimPrefix(srv.URL, "http://")
}

func TestClient_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/info" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Desk Strip","brand":"WLED","ver":"0.14.0","leds":{"count":144,"fps":42}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, host := newTestClient(t, srv)
	cfg, err := c.Probe(context.Background(), host)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if cfg.Name != "Desk Strip" {
		t.Errorf("Name = %q, want %q", cfg.Name, "Desk Strip")
	}
	if cfg.PixelCount != 144 {
		t.Errorf("PixelCount = %d, want 144", cfg.PixelCount)
	}
	if cfg.IconName != IconName {
		t.Errorf("IconName = %q, want %q", cfg.IconName, IconName)
	}
	if cfg.IPAddress != host {
		t.Errorf("IPAddress = %q, want %q", cfg.IPAddress, host)
	}
}

func TestClient_ProbeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrRequestFailed,
		},
		{
			name: "foreign brand",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"name":"x","brand":"Acme","leds":{"count":3}}`)) //nolint:errcheck
			},
			wantErr: ErrIncompatible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, host := newTestClient(t, srv)
			if _, err := c.Probe(context.Background(), host); !errors.Is(err, tt.wantErr) {
				t.Errorf("Probe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_ProbeMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, host := newTestClient(t, srv)
	if _, err := c.Probe(context.Background(), host); err == nil {
		t.Error("Probe() expected error for malformed body, got nil")
	}
}

func TestClient_ProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, host := newTestClient(t, srv)
	srv.Close()

	if _, err := c.Probe(context.Background(), host); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Probe() error = %v, want ErrRequestFailed", err)
	}
}
