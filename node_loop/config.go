package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bbcan/canspec"
)

// NodeConfig describes one node: its message table, timing and channels.
type NodeConfig struct {
	Meta     NodeMeta        `yaml:"meta"`
	Registry string          `yaml:"registry"`
	Timing   NodeTiming      `yaml:"timing"`
	Channels []ChannelConfig `yaml:"channels"`
	Values   []InitialValue  `yaml:"values,omitempty"`
}

// NodeMeta contains node metadata
type NodeMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	DBCNode     string `yaml:"dbc_node,omitempty"` // local node name when registry is a .dbc file
}

// NodeTiming defines the polling loop
type NodeTiming struct {
	Tick          time.Duration `yaml:"tick"`
	MaxDelayTicks uint32        `yaml:"max_delay_ticks"`
	StaleAfter    time.Duration `yaml:"stale_after,omitempty"`
	StatusEvery   time.Duration `yaml:"status_every,omitempty"`
	Duration      time.Duration `yaml:"duration,omitempty"` // 0 runs until signalled
	RxQueue       int           `yaml:"rx_queue,omitempty"`
	RxBurst       int           `yaml:"rx_burst,omitempty"` // frames dispatched per tick, 0 = all pending
}

// ChannelConfig is one physical CAN channel. The n-th entry (from 0) serves
// tx mask bit 1<<n.
type ChannelConfig struct {
	Transport string `yaml:"transport"` // socketcan, slcan or loopback
	Interface string `yaml:"interface,omitempty"`
	Device    string `yaml:"device,omitempty"`
	Baud      int    `yaml:"baud,omitempty"`
	Bitrate   int    `yaml:"bitrate,omitempty"`
	TxOnly    bool   `yaml:"tx_only,omitempty"`
}

// InitialValue seeds one field before the first transmission.
type InitialValue struct {
	Message string `yaml:"message"`
	Field   string `yaml:"field"`
	Value   int64  `yaml:"value"`
}

const maxChannels = 8

// LoadNodeConfig loads a node configuration from a YAML file
func LoadNodeConfig(path string) (NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("read file: %w", err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("unmarshal: %w", err)
	}

	if cfg.Meta.Name == "" {
		cfg.Meta.Name = "node"
	}
	if cfg.Timing.Tick == 0 {
		cfg.Timing.Tick = time.Millisecond
	}
	if cfg.Timing.MaxDelayTicks == 0 {
		cfg.Timing.MaxDelayTicks = 10000
	}
	if cfg.Timing.RxQueue == 0 {
		cfg.Timing.RxQueue = 256
	}

	if err := cfg.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Validate checks the fields LoadNodeConfig cannot default.
func (c *NodeConfig) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry path is required")
	}
	if c.Timing.Tick <= 0 {
		return fmt.Errorf("invalid tick: %v", c.Timing.Tick)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	if len(c.Channels) > maxChannels {
		return fmt.Errorf("%d channels configured, at most %d", len(c.Channels), maxChannels)
	}
	for i, ch := range c.Channels {
		switch ch.Transport {
		case "socketcan":
			if ch.Interface == "" {
				return fmt.Errorf("channel %d: socketcan requires interface", i+1)
			}
		case "slcan":
			if ch.Device == "" {
				return fmt.Errorf("channel %d: slcan requires device", i+1)
			}
			if ch.Bitrate == 0 {
				return fmt.Errorf("channel %d: slcan requires bitrate", i+1)
			}
		case "loopback":
		default:
			return fmt.Errorf("channel %d: unknown transport %q", i+1, ch.Transport)
		}
	}
	return nil
}

// ChannelMask is the bit a channel index answers to in a tx mask.
func ChannelMask(i int) canspec.Channel {
	return canspec.Channel(1) << i
}
