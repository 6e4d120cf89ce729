package blackboard

import (
	"fmt"

	"bbcan/canspec"
)

// Scalar lists the widths the blackboard can read and write in place.
type Scalar interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32
}

func sizeOf[T Scalar]() uint8 {
	var z T
	switch any(z).(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	default:
		return 4
	}
}

// checkAccess panics on an access that leaves the element or is not aligned to
// its width. Either means the message layout table is wrong.
func checkAccess(byteOffset, size uint8) {
	if int(byteOffset)+int(size) > canspec.MaxBytes {
		panic(fmt.Sprintf("blackboard: %d-byte access at offset %d exceeds element", size, byteOffset))
	}
	if byteOffset%size != 0 {
		panic(fmt.Sprintf("blackboard: %d-byte access at offset %d is misaligned", size, byteOffset))
	}
}

// Get reads the value of width T at byteOffset of element idx.
func Get[T Scalar](s *Store, idx canspec.Index, byteOffset uint8) T {
	size := sizeOf[T]()
	checkAccess(byteOffset, size)
	e := s.elem(idx)
	w := e.words[byteOffset/4].Load()
	return T(w >> ((byteOffset % 4) * 8))
}

// Set writes value at byteOffset of element idx and stamps the element.
// Sub-word writes swap only their own lanes of the containing word.
func Set[T Scalar](s *Store, idx canspec.Index, value T, byteOffset uint8) {
	size := sizeOf[T]()
	checkAccess(byteOffset, size)
	e := s.elem(idx)
	cell := &e.words[byteOffset/4]

	if size == 4 {
		cell.Store(uint32(value))
	} else {
		shift := (byteOffset % 4) * 8
		lane := uint32(1)<<(size*8) - 1
		v := (uint32(value) & lane) << shift
		mask := lane << shift
		for {
			old := cell.Load()
			if cell.CompareAndSwap(old, old&^mask|v) {
				break
			}
		}
	}
	s.touch(e)
}

// GetField reads f from element idx, sign-extending signed fields.
func (s *Store) GetField(idx canspec.Index, f canspec.Field) int64 {
	switch {
	case f.ByteCount == 1 && f.Signed:
		return int64(Get[int8](s, idx, f.StartByte))
	case f.ByteCount == 1:
		return int64(Get[uint8](s, idx, f.StartByte))
	case f.ByteCount == 2 && f.Signed:
		return int64(Get[int16](s, idx, f.StartByte))
	case f.ByteCount == 2:
		return int64(Get[uint16](s, idx, f.StartByte))
	case f.ByteCount == 4 && f.Signed:
		return int64(Get[int32](s, idx, f.StartByte))
	case f.ByteCount == 4:
		return int64(Get[uint32](s, idx, f.StartByte))
	}
	panic(fmt.Sprintf("blackboard: field %s has unsupported width %d", f.Name, f.ByteCount))
}

// SetField writes v into f of element idx, truncating to the field width.
func (s *Store) SetField(idx canspec.Index, f canspec.Field, v int64) {
	switch f.ByteCount {
	case 1:
		Set(s, idx, uint8(v), f.StartByte)
	case 2:
		Set(s, idx, uint16(v), f.StartByte)
	case 4:
		Set(s, idx, uint32(v), f.StartByte)
	default:
		panic(fmt.Sprintf("blackboard: field %s has unsupported width %d", f.Name, f.ByteCount))
	}
}

// Named resolves a message and field by name.
func (s *Store) Named(message, field string) (canspec.Index, canspec.Field, error) {
	idx, ok := s.reg.ByName(message)
	if !ok {
		return 0, canspec.Field{}, fmt.Errorf("unknown message %q (available: %v)", message, s.reg.FrameNames())
	}
	f, ok := s.reg.FieldByName(idx, field)
	if !ok {
		return 0, canspec.Field{}, fmt.Errorf("message %s has no field %q", message, field)
	}
	return idx, f, nil
}
