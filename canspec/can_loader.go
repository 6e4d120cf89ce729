package canspec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadFile picks a loader from the file extension (.csv, .yaml/.yml, .dbc).
func LoadFile(path string, opts ...LoadOption) (*Registry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, opts...)
	case ".yaml", ".yml":
		return LoadYAML(path, opts...)
	case ".dbc":
		return LoadDBC(path, opts...)
	default:
		return nil, fmt.Errorf("unsupported registry file %q (want .csv, .yaml or .dbc)", path)
	}
}

// LoadCSV reads a can_spec.csv table. Each row describes one field of one
// frame; a frame without fields is a single row with an empty field_name.
// Frames keep the order of their first row.
func LoadCSV(csvPath string, opts ...LoadOption) (*Registry, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	descs, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}
	newLoadConfig(opts).bind(descs)
	return NewRegistry(descs...)
}

func readCSV(src io.Reader) ([]Descriptor, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	req := []string{
		"frame_id", "frame_name", "cycle_ms", "dlc", "tx_chan", "rx_chan",
		"field_name", "start_byte", "byte_count", "signed",
	}
	for _, k := range req {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("can_spec.csv missing required column: %q", k)
		}
	}

	var descs []Descriptor
	byName := map[string]int{}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		frameID, err := parseHexOrDecUint32(rec[idx["frame_id"]])
		if err != nil {
			return nil, fmt.Errorf("invalid frame_id %q: %w", rec[idx["frame_id"]], err)
		}
		frameName := strings.TrimSpace(rec[idx["frame_name"]])

		cycleMS, err := parseUint(rec[idx["cycle_ms"]], 32)
		if err != nil {
			return nil, fmt.Errorf("frame %s: cycle_ms: %w", frameName, err)
		}
		dlc, err := parseUint(rec[idx["dlc"]], 8)
		if err != nil {
			return nil, fmt.Errorf("frame %s: dlc: %w", frameName, err)
		}
		txChan, err := parseHexOrDecUint32(rec[idx["tx_chan"]])
		if err != nil || txChan > 0xFF {
			return nil, fmt.Errorf("frame %s: invalid tx_chan %q", frameName, rec[idx["tx_chan"]])
		}
		rxChan, err := parseHexOrDecUint32(rec[idx["rx_chan"]])
		if err != nil || rxChan > 0xFF {
			return nil, fmt.Errorf("frame %s: invalid rx_chan %q", frameName, rec[idx["rx_chan"]])
		}

		extended := false
		if i, ok := idx["extended"]; ok {
			extended = mustBool(rec[i])
		}

		pos, ok := byName[frameName]
		if !ok {
			descs = append(descs, Descriptor{
				ID:         frameID,
				Name:       frameName,
				ExtendedID: extended,
				Period:     time.Duration(cycleMS) * time.Millisecond,
				Bytes:      uint8(dlc),
				TxChan:     Channel(txChan),
				RxChan:     Channel(rxChan),
			})
			pos = len(descs) - 1
			byName[frameName] = pos
		}
		d := &descs[pos]
		if d.ID != frameID || d.Bytes != uint8(dlc) {
			return nil, fmt.Errorf("frame %s has inconsistent id/dlc (0x%X/%d vs 0x%X/%d)",
				frameName, d.ID, d.Bytes, frameID, dlc)
		}

		fieldName := strings.TrimSpace(rec[idx["field_name"]])
		if fieldName == "" {
			continue
		}
		start, err := parseUint(rec[idx["start_byte"]], 8)
		if err != nil {
			return nil, fmt.Errorf("frame %s field %s: start_byte: %w", frameName, fieldName, err)
		}
		count, err := parseUint(rec[idx["byte_count"]], 8)
		if err != nil {
			return nil, fmt.Errorf("frame %s field %s: byte_count: %w", frameName, fieldName, err)
		}
		d.Fields = append(d.Fields, Field{
			Name:      fieldName,
			StartByte: uint8(start),
			ByteCount: uint8(count),
			Signed:    mustBool(rec[idx["signed"]]),
		})
	}

	return descs, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	if ss == "" {
		return 0, nil
	}
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, bits)
}

func mustBool(s string) bool {
	ss := strings.TrimSpace(strings.ToLower(s))
	return ss == "true" || ss == "1" || ss == "yes"
}
