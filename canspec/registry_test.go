package canspec

import (
	"errors"
	"testing"
	"time"
)

func TestNewRegistryRejectsDuplicateIDs(t *testing.T) {
	descs := []Descriptor{
		{ID: 0x100, Name: "A", Period: 10 * time.Millisecond, Bytes: 1, TxChan: Chan1},
		{ID: 0x100, Name: "B", Period: 10 * time.Millisecond, Bytes: 1, TxChan: Chan1},
		{ID: 0x100, Name: "C", Period: 10 * time.Millisecond, Bytes: 1, TxChan: Chan1},
	}
	_, err := NewRegistry(descs...)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("NewRegistry err = %v, want ErrDuplicateID", err)
	}
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{ID: 0x100, Name: "A"},
		Descriptor{ID: 0x101, Name: "A"},
	)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("NewRegistry err = %v, want ErrDuplicateName", err)
	}
}

func TestDescriptorValidation(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		want error
	}{
		{
			name: "id beyond 29 bits",
			desc: Descriptor{ID: 0x20000000, Name: "X"},
			want: ErrInvalidID,
		},
		{
			name: "nine bytes",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 9},
			want: ErrInvalidLayout,
		},
		{
			name: "transmitted without period",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 1, TxChan: Chan1},
			want: ErrInvalidPeriod,
		},
		{
			name: "negative period",
			desc: Descriptor{ID: 1, Name: "X", Period: -time.Millisecond},
			want: ErrInvalidPeriod,
		},
		{
			name: "five fields",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 8, Fields: []Field{
				{Name: "a", StartByte: 0, ByteCount: 1},
				{Name: "b", StartByte: 1, ByteCount: 1},
				{Name: "c", StartByte: 2, ByteCount: 1},
				{Name: "d", StartByte: 3, ByteCount: 1},
				{Name: "e", StartByte: 4, ByteCount: 1},
			}},
			want: ErrInvalidLayout,
		},
		{
			name: "three byte field",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 4, Fields: []Field{{Name: "a", ByteCount: 3}}},
			want: ErrInvalidLayout,
		},
		{
			name: "misaligned word",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 8, Fields: []Field{{Name: "a", StartByte: 2, ByteCount: 4}}},
			want: ErrInvalidLayout,
		},
		{
			name: "field past dlc",
			desc: Descriptor{ID: 1, Name: "X", Bytes: 2, Fields: []Field{{Name: "a", StartByte: 2, ByteCount: 2}}},
			want: ErrInvalidLayout,
		},
		{
			name: "valid",
			desc: Descriptor{ID: 0x18FF0001, Name: "X", Period: time.Second, Bytes: 8, TxChan: Chan1 | Chan2, Fields: []Field{
				{Name: "a", StartByte: 0, ByteCount: 4, Signed: true},
				{Name: "b", StartByte: 4, ByteCount: 2},
				{Name: "c", StartByte: 7, ByteCount: 1},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.desc)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := MustRegistry(
		Descriptor{ID: 0x300, Name: "C"},
		Descriptor{ID: 0x100, Name: "A", Fields: nil},
		Descriptor{ID: 0x1ABCDE00, Name: "X", Bytes: 2, Fields: []Field{{Name: "f", ByteCount: 2}}},
	)

	for i := 0; i < reg.Len(); i++ {
		d := reg.At(Index(i))
		idx, ok := reg.Lookup(d.ID)
		if !ok || idx != Index(i) {
			t.Fatalf("Lookup(0x%X) = %d,%v, want %d", d.ID, idx, ok, i)
		}
		idx, ok = reg.ByName(d.Name)
		if !ok || idx != Index(i) {
			t.Fatalf("ByName(%s) = %d,%v, want %d", d.Name, idx, ok, i)
		}
	}

	if _, ok := reg.Lookup(0x200); ok {
		t.Fatalf("Lookup of unregistered id succeeded")
	}
	if !reg.At(2).Extended() || reg.At(0).Extended() {
		t.Fatalf("Extended() mismatch")
	}
	if f, ok := reg.FieldByName(2, "f"); !ok || f.ByteCount != 2 {
		t.Fatalf("FieldByName = %+v,%v", f, ok)
	}
	if got := reg.FrameNames(); len(got) != 3 || got[0] != "C" || got[2] != "X" {
		t.Fatalf("FrameNames = %v", got)
	}
}

func TestRegistryCopiesFields(t *testing.T) {
	fields := []Field{{Name: "f", ByteCount: 1}}
	reg := MustRegistry(Descriptor{ID: 1, Name: "A", Bytes: 1, Fields: fields})
	fields[0].Name = "changed"
	if reg.At(0).Fields[0].Name != "f" {
		t.Fatalf("registry shares caller's field slice")
	}

	out := reg.Descriptors()
	out[0].Fields[0].Name = "mutated"
	out[0].Fields = append(out[0].Fields, Field{Name: "extra", ByteCount: 1})
	out[0].Name = "B"
	if d := reg.At(0); d.Name != "A" || len(d.Fields) != 1 || d.Fields[0].Name != "f" {
		t.Fatalf("Descriptors shares registry state: %+v", d)
	}
	if _, ok := reg.FieldByName(0, "f"); !ok {
		t.Fatalf("field lookup broken after mutating a copy")
	}
}

func TestChannelHas(t *testing.T) {
	m := Chan1 | Chan3
	if !m.Has(Chan1) || !m.Has(Chan3) || m.Has(Chan2) || m.Has(ChanNone) {
		t.Fatalf("Has mismatch for mask 0x%02X", uint8(m))
	}
}
