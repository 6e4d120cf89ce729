// Package blackboard holds the latest known payload of every registered CAN
// message, addressed by canspec.Index.
//
// Each element is two 32-bit words laid out like the CAN payload (word0 holds
// bytes 0-3 little-endian, word1 bytes 4-7). Every access touches only the
// naturally aligned bytes of its own width and is atomic with respect to that
// width, so one writer per direction needs no lock. Two unsynchronized writers
// on overlapping byte ranges of the same element are not supported.
package blackboard

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"bbcan/canspec"
)

const wordsPerElement = 2

// Clock supplies the tick count used for last-update stamps.
type Clock interface {
	Ticks() uint32
}

type element struct {
	words      [wordsPerElement]atomic.Uint32
	lastUpdate atomic.Uint32

	// wakeupOffset belongs to the transmit scheduler.
	wakeupOffset uint32
}

// Store owns one element per registry entry.
type Store struct {
	reg      *canspec.Registry
	clock    Clock
	elements []element
}

// New allocates an element for every message of reg.
func New(reg *canspec.Registry, clock Clock) *Store {
	return &Store{
		reg:      reg,
		clock:    clock,
		elements: make([]element, reg.Len()),
	}
}

// Registry returns the table the store was sized from.
func (s *Store) Registry() *canspec.Registry { return s.reg }

// Len returns the number of elements.
func (s *Store) Len() int { return len(s.elements) }

func (s *Store) elem(idx canspec.Index) *element {
	if idx < 0 || int(idx) >= len(s.elements) {
		panic(fmt.Sprintf("blackboard: index %d out of range [0,%d)", idx, len(s.elements)))
	}
	return &s.elements[idx]
}

func (s *Store) touch(e *element) {
	e.lastUpdate.Store(s.clock.Ticks())
}

// RawPair returns both payload words.
func (s *Store) RawPair(idx canspec.Index) (w0, w1 uint32) {
	e := s.elem(idx)
	return e.words[0].Load(), e.words[1].Load()
}

// SetRawPair replaces both payload words and stamps the element.
func (s *Store) SetRawPair(idx canspec.Index, w0, w1 uint32) {
	e := s.elem(idx)
	e.words[0].Store(w0)
	e.words[1].Store(w1)
	s.touch(e)
}

// RawBytes returns all 8 payload bytes regardless of the message's dlc.
func (s *Store) RawBytes(idx canspec.Index) [canspec.MaxBytes]byte {
	w0, w1 := s.RawPair(idx)
	var b [canspec.MaxBytes]byte
	binary.LittleEndian.PutUint32(b[0:4], w0)
	binary.LittleEndian.PutUint32(b[4:8], w1)
	return b
}

// SetRawBytes replaces all 8 payload bytes.
func (s *Store) SetRawBytes(idx canspec.Index, b [canspec.MaxBytes]byte) {
	s.SetRawPair(idx, binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8]))
}

// LastUpdate returns the tick of the most recent write to idx.
func (s *Store) LastUpdate(idx canspec.Index) uint32 {
	return s.elem(idx).lastUpdate.Load()
}

// Age returns the ticks elapsed between the last write to idx and now.
func (s *Store) Age(idx canspec.Index, now uint32) uint32 {
	return now - s.LastUpdate(idx)
}
