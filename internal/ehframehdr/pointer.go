// Package ehframehdr parses the GNU .eh_frame_hdr binary-search index and
// decodes DW_EH_PE_*-encoded pointers relative to a set of base
// addresses. This is the one byte-level DWARF decoding layer ehwalk
// writes by hand (see DESIGN.md): no module in the retrieval pack exposes
// this format as an importable library, so it is grounded directly on
// other_examples' pattyshack-bad eh_frame pointer decoder, generalized
// from CIE/FDE augmentation pointers to the header's own search table.
package ehframehdr

import (
	"encoding/binary"
	"fmt"
)

// DW_EH_PE_* encoding bytes, per the LSB/gABI "Linux Standard Base" eh_frame
// pointer encoding application note. The low nibble selects the value's
// format, the high nibble selects the base it is relative to.
const (
	DwEhPeAbsptr  = 0x00
	DwEhPeUleb128 = 0x01
	DwEhPeUdata2  = 0x02
	DwEhPeUdata4  = 0x03
	DwEhPeUdata8  = 0x04
	DwEhPeSleb128 = 0x09
	DwEhPeSdata2  = 0x0a
	DwEhPeSdata4  = 0x0b
	DwEhPeSdata8  = 0x0c

	DwEhPeOmit = 0xff

	DwEhPePcrel   = 0x10
	DwEhPeTextrel = 0x20
	DwEhPeDatarel = 0x30
	DwEhPeFuncrel = 0x40
	DwEhPeAligned = 0x50

	DwEhPeIndirect = 0x80
)

// BaseAddresses carries the anchors encoded pointers are made relative
// to: the object's text segment, the .eh_frame section, the
// .eh_frame_hdr section, and a data-relative anchor (rarely used, kept
// for ABI completeness per spec.md §3's BaseAddresses description).
type BaseAddresses struct {
	Text       uint64
	EhFrame    uint64
	EhFrameHdr uint64
	Data       uint64
}

// Pointer is the Direct(x) | Indirect(x) sum type from spec.md §3: a
// decoded pointer value that may need one more level of (process-memory)
// indirection before use.
type Pointer struct {
	Indirect bool
	Value    uint64
}

// Deref resolves a Pointer to its final uint64 value, following one
// level of indirection through memory if needed. This is the one place
// in this package that performs a raw memory read; everywhere else only
// decodes bytes already materialized as a Go slice.
func (p Pointer) Deref(mem MemoryReader) (uint64, error) {
	if !p.Indirect {
		return p.Value, nil
	}
	var buf [8]byte
	if err := mem.ReadAt(p.Value, buf[:]); err != nil {
		return 0, fmt.Errorf("ehframehdr: indirect pointer deref at 0x%x: %w", p.Value, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// MemoryReader reads process memory at an absolute address. For the
// common case (the unwinder's own address space) this is backed by
// unsafe pointer reads; see internal/unwind.SelfMemory.
type MemoryReader interface {
	ReadAt(addr uint64, buf []byte) error
}

// Decoder reads encoded values out of a byte cursor, tracking the
// section-relative position needed for DW_EH_PE_pcrel. It is exported so
// internal/object's CIE/FDE augmentation scanner can reuse the same
// ULEB128/SLEB128/pointer decoding this package uses for the
// .eh_frame_hdr table, instead of duplicating it.
type Decoder struct {
	data []byte
	pos  int

	// sectionRelativeBase is the value added to pos to form the
	// "current location" used by DW_EH_PE_pcrel (i.e. the absolute
	// address of the section this decoder is reading).
	sectionRelativeBase uint64
}

type decoder = Decoder

// NewDecoder returns a Decoder over data, whose byte at index 0 is found
// at address base in the target's address space.
func NewDecoder(data []byte, base uint64) *Decoder {
	return &Decoder{data: data, sectionRelativeBase: base}
}

func newDecoder(data []byte, base uint64) *decoder {
	return NewDecoder(data, base)
}

// Pos returns the decoder's current byte offset into data.
func (d *Decoder) Pos() int { return d.pos }

// SetPos sets the decoder's current byte offset into data.
func (d *Decoder) SetPos(pos int) { d.pos = pos }

// CString reads a NUL-terminated ASCII string, per the CIE augmentation
// string field's encoding.
func (d *Decoder) CString() (string, error) {
	start := d.pos
	for {
		if d.pos >= len(d.data) {
			return "", fmt.Errorf("ehframehdr: unterminated string starting at offset %d", start)
		}
		if d.data[d.pos] == 0 {
			s := string(d.data[start:d.pos])
			d.pos++
			return s, nil
		}
		d.pos++
	}
}

func (d *decoder) u8() (uint8, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("ehframehdr: truncated while reading u8 at offset %d", d.pos)
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u16() (uint16, error) {
	if d.pos+2 > len(d.data) {
		return 0, fmt.Errorf("ehframehdr: truncated while reading u16 at offset %d", d.pos)
	}
	v := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, fmt.Errorf("ehframehdr: truncated while reading u32 at offset %d", d.pos)
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.data) {
		return 0, fmt.Errorf("ehframehdr: truncated while reading u64 at offset %d", d.pos)
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) uleb128() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := d.u8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("ehframehdr: uleb128 overflow")
		}
	}
	return result, nil
}

func (d *decoder) sleb128() (int64, error) {
	var result int64
	var shift uint
	var b uint8
	var err error
	for {
		b, err = d.u8()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

// pointer decodes one DW_EH_PE_<encoding>-formatted pointer, relative to
// bases, at the decoder's current position.
func (d *decoder) pointer(encoding uint8, bases BaseAddresses) (Pointer, error) {
	if encoding == DwEhPeOmit {
		return Pointer{}, fmt.Errorf("ehframehdr: DW_EH_PE_omit has no value")
	}

	var base uint64
	switch encoding & 0x70 {
	case DwEhPeAbsptr:
		// base stays 0
	case DwEhPePcrel:
		base = d.sectionRelativeBase + uint64(d.pos)
	case DwEhPeTextrel:
		base = bases.Text
	case DwEhPeDatarel:
		base = bases.Data
	case DwEhPeFuncrel:
		// Function-relative pointers would need the enclosing FDE's start
		// address, which this decoder is not given; base stays 0, so a
		// DW_EH_PE_funcrel value decodes as its bare offset.
	case DwEhPeAligned:
		pad := (uint64(d.pos)) % 8
		if pad != 0 {
			d.pos += int(8 - pad)
		}
	default:
		return Pointer{}, fmt.Errorf("ehframehdr: unsupported pointer base encoding 0x%x", encoding&0x70)
	}

	var delta int64
	switch encoding & 0x0f {
	case DwEhPeAbsptr, DwEhPeUdata8:
		v, err := d.u64()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(v)
	case DwEhPeUdata2:
		v, err := d.u16()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(v)
	case DwEhPeUdata4:
		v, err := d.u32()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(v)
	case DwEhPeUleb128:
		v, err := d.uleb128()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(v)
	case DwEhPeSdata2:
		v, err := d.u16()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(int16(v))
	case DwEhPeSdata4:
		v, err := d.u32()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(int32(v))
	case DwEhPeSdata8:
		v, err := d.u64()
		if err != nil {
			return Pointer{}, err
		}
		delta = int64(v)
	case DwEhPeSleb128:
		v, err := d.sleb128()
		if err != nil {
			return Pointer{}, err
		}
		delta = v
	default:
		return Pointer{}, fmt.Errorf("ehframehdr: unsupported pointer value encoding 0x%x", encoding&0x0f)
	}

	value := base + uint64(delta)
	return Pointer{Indirect: encoding&DwEhPeIndirect != 0, Value: value}, nil
}

// U8 reads one unsigned byte.
func (d *Decoder) U8() (uint8, error) { return d.u8() }

// ULEB128 reads an unsigned LEB128-encoded integer.
func (d *Decoder) ULEB128() (uint64, error) { return d.uleb128() }

// SLEB128 reads a signed LEB128-encoded integer.
func (d *Decoder) SLEB128() (int64, error) { return d.sleb128() }

// Pointer decodes one DW_EH_PE_<encoding>-formatted pointer relative to
// bases, at the decoder's current position, per the LSB eh_frame pointer
// encoding application note.
func (d *Decoder) Pointer(encoding uint8, bases BaseAddresses) (Pointer, error) {
	return d.pointer(encoding, bases)
}
