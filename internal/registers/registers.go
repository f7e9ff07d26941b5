// Package registers implements the dense, sparse-valued register file
// described in spec.md §3: a fixed-size array of optional uint64s indexed
// by DWARF register number, generalized from the original source's
// [Option<u64>; 32] to an arbitrary architecture-sized slice so that
// arm64's vector registers (up to DWARF number 95) fit alongside amd64's
// plain integer set.
package registers

import (
	"fmt"
	"strings"

	"github.com/ehwalk/ehwalk/internal/archspec"
)

// Registers is a clonable snapshot of machine registers, addressed by
// DWARF register number. A nil slot means "unknown / not recovered",
// matching the original's Option<u64>::None.
type Registers struct {
	arch  *archspec.Arch
	slots []*uint64
}

// New returns an all-unknown register file sized for arch.
func New(arch *archspec.Arch) *Registers {
	return &Registers{
		arch:  arch,
		slots: make([]*uint64, arch.MaxRegNum),
	}
}

// Arch returns the architecture this register file was built for.
func (r *Registers) Arch() *archspec.Arch { return r.arch }

// Len returns the number of addressable register slots.
func (r *Registers) Len() int { return len(r.slots) }

// Get returns the value of register n and whether it is known.
func (r *Registers) Get(n uint64) (uint64, bool) {
	if int(n) >= len(r.slots) || r.slots[n] == nil {
		return 0, false
	}
	return *r.slots[n], true
}

// Set records a known value for register n, growing the slice if a CIE
// references a register number above the architecture's nominal maximum
// (this happens in practice with some vendor-extension CFI).
func (r *Registers) Set(n uint64, v uint64) {
	r.ensure(n)
	r.slots[n] = &v
}

// Clear marks register n as unknown (Option::None).
func (r *Registers) Clear(n uint64) {
	if int(n) < len(r.slots) {
		r.slots[n] = nil
	}
}

func (r *Registers) ensure(n uint64) {
	if int(n) < len(r.slots) {
		return
	}
	grown := make([]*uint64, n+1)
	copy(grown, r.slots)
	r.slots = grown
}

// Clone returns a deep, independent copy.
func (r *Registers) Clone() *Registers {
	out := &Registers{arch: r.arch, slots: make([]*uint64, len(r.slots))}
	for i, v := range r.slots {
		if v == nil {
			continue
		}
		cp := *v
		out.slots[i] = &cp
	}
	return out
}

// SP, PC, BP and RA read the architecture's designated registers. ok is
// false when the corresponding slot is unknown.
func (r *Registers) SP() (uint64, bool) { return r.Get(r.arch.SPRegNum) }
func (r *Registers) PC() (uint64, bool) { return r.Get(r.arch.PCRegNum) }
func (r *Registers) BP() (uint64, bool) { return r.Get(r.arch.BPRegNum) }
func (r *Registers) RA() (uint64, bool) { return r.Get(r.arch.RARegNum) }

// SetSP, SetPC and SetRA set the architecture's designated registers.
func (r *Registers) SetSP(v uint64) { r.Set(r.arch.SPRegNum, v) }
func (r *Registers) SetPC(v uint64) { r.Set(r.arch.PCRegNum, v) }
func (r *Registers) SetRA(v uint64) { r.Set(r.arch.RARegNum, v) }

// String recovers the original's Debug impl: every slot, in order, shown
// as "XXX" when unknown or "0x..." when known.
func (r *Registers) String() string {
	var b strings.Builder
	for i, v := range r.slots {
		if i > 0 {
			b.WriteByte(' ')
		}
		if v == nil {
			b.WriteString("XXX")
		} else {
			fmt.Fprintf(&b, "0x%x", *v)
		}
	}
	return b.String()
}
