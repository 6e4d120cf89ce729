package blackboard

import "bbcan/canspec"

// The wakeup offset is the countdown, in ticks, until an element is due for
// transmission. Only the transmit scheduler touches it.

func (s *Store) WakeupOffset(idx canspec.Index) uint32 {
	return s.elem(idx).wakeupOffset
}

func (s *Store) SetWakeupOffset(idx canspec.Index, offset uint32) {
	s.elem(idx).wakeupOffset = offset
}

// DecrementWakeupOffset subtracts elapsed from the offset if the element is
// not yet due. It returns false, leaving the offset alone, when elapsed has
// reached or passed it.
func (s *Store) DecrementWakeupOffset(idx canspec.Index, elapsed uint32) bool {
	e := s.elem(idx)
	if e.wakeupOffset > elapsed {
		e.wakeupOffset -= elapsed
		return true
	}
	return false
}

// OverflowTicks is how far past due the element is after elapsed ticks.
func (s *Store) OverflowTicks(idx canspec.Index, elapsed uint32) uint32 {
	return elapsed - s.elem(idx).wakeupOffset
}
