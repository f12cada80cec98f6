// Package registers implements the shadow copy of the ASIC register file.
//
// The set remembers every register the driver has initialised together with
// a participation flag. Bulk writes only carry participating registers; a
// removed register keeps its last value so read-modify-write logic still
// works against it.
package registers

import (
	"slices"

	"github.com/micro-nova/gl846-go/internal/models"
)

// Address is a register address on the ASIC.
type Address = uint16

// Pair is one (address, value) entry of a bulk register write.
type Pair struct {
	Addr  Address `json:"addr" cbor:"1,keyasint"`
	Value byte    `json:"value" cbor:"2,keyasint"`
}

type entry struct {
	value  byte
	active bool
}

// Set is the shadow register set. The zero value is ready to use.
type Set struct {
	regs map[Address]entry
}

// New returns an empty register set.
func New() *Set {
	return &Set{regs: make(map[Address]entry)}
}

// Init establishes addr with value v. The register takes part in bulk
// writes until Remove is called, even if it was removed before.
func (s *Set) Init(addr Address, v byte) {
	if s.regs == nil {
		s.regs = make(map[Address]entry)
	}
	s.regs[addr] = entry{value: v, active: true}
}

// Has reports whether addr was ever initialised.
func (s *Set) Has(addr Address) bool {
	_, ok := s.regs[addr]
	return ok
}

// Active reports whether addr currently takes part in bulk writes.
func (s *Set) Active(addr Address) bool {
	e, ok := s.regs[addr]
	return ok && e.active
}

// Remove excludes addr from subsequent bulk writes. The value is retained.
func (s *Set) Remove(addr Address) {
	if e, ok := s.regs[addr]; ok {
		e.active = false
		s.regs[addr] = e
	}
}

// Clear drops every register.
func (s *Set) Clear() {
	s.regs = make(map[Address]entry)
}

// Len returns the number of known registers, removed ones included.
func (s *Set) Len() int { return len(s.regs) }

// Get8 returns the value of addr.
func (s *Set) Get8(addr Address) (byte, error) {
	e, ok := s.regs[addr]
	if !ok {
		return 0, models.ErrNotFound("register 0x%02x not initialised", addr)
	}
	return e.value, nil
}

// Set8 overwrites the value of addr without changing its participation.
func (s *Set) Set8(addr Address, v byte) error {
	e, ok := s.regs[addr]
	if !ok {
		return models.ErrNotFound("register 0x%02x not initialised", addr)
	}
	e.value = v
	s.regs[addr] = e
	return nil
}

// Value returns the value of addr, or 0 when unknown. It is meant for
// registers that are part of the default image.
func (s *Set) Value(addr Address) byte {
	return s.regs[addr].value
}

// Update applies fn to the value of addr (read-modify-write).
func (s *Set) Update(addr Address, fn func(byte) byte) error {
	v, err := s.Get8(addr)
	if err != nil {
		return err
	}
	return s.Set8(addr, fn(v))
}

// SetBits sets mask in addr.
func (s *Set) SetBits(addr Address, mask byte) error {
	return s.Update(addr, func(v byte) byte { return v | mask })
}

// ClearBits clears mask in addr.
func (s *Set) ClearBits(addr Address, mask byte) error {
	return s.Update(addr, func(v byte) byte { return v &^ mask })
}

// SetFlag sets or clears mask in addr depending on on.
func (s *Set) SetFlag(addr Address, mask byte, on bool) error {
	if on {
		return s.SetBits(addr, mask)
	}
	return s.ClearBits(addr, mask)
}

// Set16 stores v in addr (low byte) and addr+1 (high byte).
func (s *Set) Set16(addr Address, v uint16) error {
	return s.setN(addr, uint32(v), 2)
}

// Get16 reads a 16-bit value stored by Set16.
func (s *Set) Get16(addr Address) (uint16, error) {
	v, err := s.getN(addr, 2)
	return uint16(v), err
}

// Set24 stores the low 24 bits of v in addr, addr+1 and addr+2, least
// significant byte first.
func (s *Set) Set24(addr Address, v uint32) error {
	return s.setN(addr, v, 3)
}

// Get24 reads a 24-bit value stored by Set24.
func (s *Set) Get24(addr Address) (uint32, error) {
	return s.getN(addr, 3)
}

func (s *Set) setN(addr Address, v uint32, n int) error {
	// all-or-nothing: validate before mutating
	for i := 0; i < n; i++ {
		if !s.Has(addr + Address(i)) {
			return models.ErrNotFound("register 0x%02x not initialised", addr+Address(i))
		}
	}
	for i := 0; i < n; i++ {
		_ = s.Set8(addr+Address(i), byte(v>>(8*i)))
	}
	return nil
}

func (s *Set) getN(addr Address, n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := s.Get8(addr + Address(i))
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// Export returns the participating registers in ascending address order.
func (s *Set) Export() []Pair {
	pairs := make([]Pair, 0, len(s.regs))
	for addr, e := range s.regs {
		if e.active {
			pairs = append(pairs, Pair{Addr: addr, Value: e.value})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int { return int(a.Addr) - int(b.Addr) })
	return pairs
}

// Import builds a set whose registers all participate in bulk writes.
// Later pairs win on duplicate addresses.
func Import(pairs []Pair) *Set {
	s := New()
	for _, p := range pairs {
		s.Init(p.Addr, p.Value)
	}
	return s
}

// Clone returns an independent copy, participation flags included.
func (s *Set) Clone() *Set {
	c := &Set{regs: make(map[Address]entry, len(s.regs))}
	for addr, e := range s.regs {
		c.regs[addr] = e
	}
	return c
}

// Equal reports whether both sets hold the same registers, values and
// participation.
func (s *Set) Equal(o *Set) bool {
	if len(s.regs) != len(o.regs) {
		return false
	}
	for addr, e := range s.regs {
		if oe, ok := o.regs[addr]; !ok || oe != e {
			return false
		}
	}
	return true
}
