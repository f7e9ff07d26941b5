package ehframehdr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	at map[uint64]uint64
}

func (f fakeMemory) ReadAt(addr uint64, buf []byte) error {
	binary.LittleEndian.PutUint64(buf, f.at[addr])
	return nil
}

func TestULEB128(t *testing.T) {
	d := NewDecoder([]byte{0xe5, 0x8e, 0x26}, 0)
	v, err := d.ULEB128()
	require.NoError(t, err)
	require.EqualValues(t, 624485, v)
}

func TestSLEB128Negative(t *testing.T) {
	d := NewDecoder([]byte{0x9b, 0xf1, 0x59}, 0)
	v, err := d.SLEB128()
	require.NoError(t, err)
	require.EqualValues(t, -624485, v)
}

func TestPointerAbsptr(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x401000)
	d := NewDecoder(buf, 0x500000)

	p, err := d.Pointer(DwEhPeAbsptr|0, BaseAddresses{})
	require.NoError(t, err)
	require.False(t, p.Indirect)
	require.EqualValues(t, 0x401000, p.Value)
}

func TestPointerPcrel(t *testing.T) {
	// A 4-byte signed delta of -0x100 at section offset 0x10, whose
	// section lives at 0x500000: absolute value is base(pcrel) + delta,
	// where base is the decoder's own position at read time.
	buf := make([]byte, 0x14)
	binary.LittleEndian.PutUint32(buf[0x10:], uint32(int32(-0x100)))
	d := NewDecoder(buf, 0x500000)
	d.SetPos(0x10)

	p, err := d.Pointer(DwEhPePcrel|DwEhPeSdata4, BaseAddresses{})
	require.NoError(t, err)
	require.EqualValues(t, 0x500010-0x100, p.Value)
}

func TestPointerIndirectFlagAndDeref(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x600000)
	d := NewDecoder(buf, 0)

	p, err := d.Pointer(DwEhPeIndirect|DwEhPeAbsptr, BaseAddresses{})
	require.NoError(t, err)
	require.True(t, p.Indirect)
	require.EqualValues(t, 0x600000, p.Value)

	mem := fakeMemory{at: map[uint64]uint64{0x600000: 0x12345678}}
	resolved, err := p.Deref(mem)
	require.NoError(t, err)
	require.EqualValues(t, 0x12345678, resolved)
}

func TestPointerDatarel(t *testing.T) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 0x20)
	d := NewDecoder(buf, 0)

	p, err := d.Pointer(DwEhPeDatarel|DwEhPeUdata2, BaseAddresses{Data: 0x700000})
	require.NoError(t, err)
	require.EqualValues(t, 0x700020, p.Value)
}
