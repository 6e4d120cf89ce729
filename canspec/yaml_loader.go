package canspec

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// specFile is the on-disk YAML layout of a registry.
type specFile struct {
	Messages []specMessage `yaml:"messages"`
}

type specMessage struct {
	ID       uint32      `yaml:"id"`
	Extended bool        `yaml:"extended,omitempty"`
	Name     string      `yaml:"name"`
	PeriodMS uint32      `yaml:"period_ms"`
	Bytes    uint8       `yaml:"bytes"`
	Tx       []int       `yaml:"tx,omitempty"` // 1-based channel numbers
	Rx       int         `yaml:"rx,omitempty"` // 1-based channel number, 0 = not subscribed
	Fields   []specField `yaml:"fields,omitempty"`
}

type specField struct {
	Name   string `yaml:"name"`
	Start  uint8  `yaml:"start"`
	Size   uint8  `yaml:"size"`
	Signed bool   `yaml:"signed"`
}

// LoadYAML reads a registry from a YAML document of the form
//
//	messages:
//	  - id: 0x400
//	    extended: false
//	    name: SCM_System
//	    period_ms: 100
//	    bytes: 4
//	    tx: [1, 2]
//	    rx: 1
//	    fields:
//	      - {name: Status, start: 0, size: 4, signed: true}
func LoadYAML(path string, opts ...LoadOption) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	descs, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	newLoadConfig(opts).bind(descs)
	return NewRegistry(descs...)
}

func parseYAML(data []byte) ([]Descriptor, error) {
	var sf specFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}

	descs := make([]Descriptor, 0, len(sf.Messages))
	for _, m := range sf.Messages {
		tx, err := channelMask(m.Tx)
		if err != nil {
			return nil, fmt.Errorf("message %s: tx: %w", m.Name, err)
		}
		var rx Channel
		if m.Rx != 0 {
			if rx, err = channelMask([]int{m.Rx}); err != nil {
				return nil, fmt.Errorf("message %s: rx: %w", m.Name, err)
			}
		}

		d := Descriptor{
			ID:         m.ID,
			ExtendedID: m.Extended,
			Name:       m.Name,
			Period:     time.Duration(m.PeriodMS) * time.Millisecond,
			Bytes:      m.Bytes,
			TxChan:     tx,
			RxChan:     rx,
		}
		for _, f := range m.Fields {
			d.Fields = append(d.Fields, Field{Name: f.Name, StartByte: f.Start, ByteCount: f.Size, Signed: f.Signed})
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func channelMask(chans []int) (Channel, error) {
	var mask Channel
	for _, c := range chans {
		if c < 1 || c > 8 {
			return 0, fmt.Errorf("channel %d out of range 1..8", c)
		}
		mask |= Channel(1) << (c - 1)
	}
	return mask, nil
}
