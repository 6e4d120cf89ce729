package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bbcan/canspec"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	cfg, err := LoadNodeConfig(writeConfig(t, `
registry: config/can_spec.yaml
channels:
  - transport: loopback
`))
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if cfg.Meta.Name != "node" || cfg.Timing.Tick != time.Millisecond ||
		cfg.Timing.MaxDelayTicks != 10000 || cfg.Timing.RxQueue != 256 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadNodeConfig(t *testing.T) {
	cfg, err := LoadNodeConfig(writeConfig(t, `
meta:
  name: body_ecu
registry: bus.dbc
timing:
  tick: 2ms
  max_delay_ticks: 25
  stale_after: 500ms
  duration: 10s
  rx_burst: 16
channels:
  - transport: socketcan
    interface: vcan0
  - transport: slcan
    device: /dev/ttyACM0
    bitrate: 500000
    tx_only: true
values:
  - {message: Status, field: Mode, value: -3}
`))
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if cfg.Timing.Tick != 2*time.Millisecond || cfg.Timing.StaleAfter != 500*time.Millisecond ||
		cfg.Timing.MaxDelayTicks != 25 || cfg.Timing.RxBurst != 16 {
		t.Fatalf("timing = %+v", cfg.Timing)
	}
	if len(cfg.Channels) != 2 || !cfg.Channels[1].TxOnly || cfg.Channels[1].Bitrate != 500000 {
		t.Fatalf("channels = %+v", cfg.Channels)
	}
	if len(cfg.Values) != 1 || cfg.Values[0].Value != -3 {
		t.Fatalf("values = %+v", cfg.Values)
	}
}

func TestLoadNodeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no registry", "channels: [{transport: loopback}]\n", "registry"},
		{"no channels", "registry: a.yaml\n", "at least one channel"},
		{"socketcan without interface", "registry: a.yaml\nchannels: [{transport: socketcan}]\n", "interface"},
		{"slcan without bitrate", "registry: a.yaml\nchannels: [{transport: slcan, device: /dev/x}]\n", "bitrate"},
		{"unknown transport", "registry: a.yaml\nchannels: [{transport: udp}]\n", "unknown transport"},
		{"negative tick", "registry: a.yaml\ntiming: {tick: -1ms}\nchannels: [{transport: loopback}]\n", "invalid tick"},
		{"too many channels", "registry: a.yaml\nchannels:\n" + strings.Repeat("  - transport: loopback\n", 9), "at most 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNodeConfig(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestChannelMask(t *testing.T) {
	if ChannelMask(0) != canspec.Chan1 || ChannelMask(2) != canspec.Chan3 {
		t.Fatalf("ChannelMask mismatch")
	}
}
