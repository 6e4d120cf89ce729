package canspec

import (
	"fmt"
	"os"
	"time"

	"go.einride.tech/can/pkg/dbc"
)

const cycleTimeAttribute = "GenMsgCycleTime"

// LoadDBC imports the messages of a DBC database. Signals must be
// little-endian, byte aligned and 8, 16 or 32 bits wide to map onto the
// blackboard's field model; anything else is rejected. The cycle time comes
// from the GenMsgCycleTime attribute. Use WithNodeName to mark which messages
// this node transmits and receives.
func LoadDBC(path string, opts ...LoadOption) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := newLoadConfig(opts)
	descs, err := parseDBC(path, data, cfg.node)
	if err != nil {
		return nil, err
	}
	cfg.bind(descs)
	return NewRegistry(descs...)
}

func parseDBC(path string, data []byte, node string) ([]Descriptor, error) {
	p := dbc.NewParser(path, data)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("parse dbc: %w", err)
	}

	cycles := map[dbc.MessageID]time.Duration{}
	var msgs []*dbc.MessageDef
	for _, def := range p.Defs() {
		switch d := def.(type) {
		case *dbc.MessageDef:
			msgs = append(msgs, d)
		case *dbc.AttributeValueForObjectDef:
			if d.ObjectType == dbc.ObjectTypeMessage && d.AttributeName == cycleTimeAttribute {
				ms := d.IntValue
				if ms == 0 && d.FloatValue != 0 {
					ms = int64(d.FloatValue)
				}
				cycles[d.MessageID] = time.Duration(ms) * time.Millisecond
			}
		}
	}

	descs := make([]Descriptor, 0, len(msgs))
	for _, m := range msgs {
		if m.Size > MaxBytes {
			return nil, fmt.Errorf("message %s: size %d: %w", m.Name, m.Size, ErrInvalidLayout)
		}
		d := Descriptor{
			ID:         m.MessageID.ToCAN(),
			Name:       string(m.Name),
			ExtendedID: m.MessageID.IsExtended(),
			Period:     cycles[m.MessageID],
			Bytes:      uint8(m.Size),
		}
		if node != "" && string(m.Transmitter) == node {
			d.TxChan = Chan1
		}

		for _, s := range m.Signals {
			if node != "" && receivedBy(s.Receivers, node) {
				d.RxChan = Chan1
			}
			if s.IsBigEndian || s.StartBit%8 != 0 {
				return nil, fmt.Errorf("message %s signal %s: only byte aligned little-endian signals map to fields: %w",
					m.Name, s.Name, ErrInvalidLayout)
			}
			switch s.Size {
			case 8, 16, 32:
			default:
				return nil, fmt.Errorf("message %s signal %s: %d bits: %w", m.Name, s.Name, s.Size, ErrInvalidLayout)
			}
			d.Fields = append(d.Fields, Field{
				Name:      string(s.Name),
				StartByte: uint8(s.StartBit / 8),
				ByteCount: uint8(s.Size / 8),
				Signed:    s.IsSigned,
			})
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func receivedBy(receivers []dbc.Identifier, node string) bool {
	for _, r := range receivers {
		if string(r) == node {
			return true
		}
	}
	return false
}
