package ehframehdr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHeader(t *testing.T, ehFramePtr uint32, entries [][2]uint32) []byte {
	t.Helper()
	buf := []byte{1, DwEhPeUdata4, DwEhPeUdata4, DwEhPeUdata4}
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	u32(ehFramePtr)
	u32(uint32(len(entries)))
	for _, e := range entries {
		u32(e[0])
		u32(e[1])
	}
	return buf
}

func TestParseHeaderAndLookup(t *testing.T) {
	data := buildHeader(t, 0x1000, [][2]uint32{
		{0x2100, 0x3100},
		{0x2000, 0x3000}, // deliberately out of order; Parse must re-sort
	})

	hdr, err := Parse(data, 0x500000, BaseAddresses{})
	require.NoError(t, err)
	require.True(t, hdr.HasTable())
	require.EqualValues(t, 0x1000, hdr.EhFramePtr.Value)

	fde, ok := hdr.Lookup(0x2050)
	require.True(t, ok)
	require.EqualValues(t, 0x3000, fde)

	fde, ok = hdr.Lookup(0x2150)
	require.True(t, ok)
	require.EqualValues(t, 0x3100, fde)

	_, ok = hdr.Lookup(0x1000)
	require.False(t, ok)
}

func TestParseHeaderNoTable(t *testing.T) {
	buf := []byte{1, DwEhPeUdata4, DwEhPeOmit, DwEhPeOmit}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 0xabcd)
	buf = append(buf, b[:]...)

	hdr, err := Parse(buf, 0x500000, BaseAddresses{})
	require.NoError(t, err)
	require.False(t, hdr.HasTable())
	require.EqualValues(t, 0xabcd, hdr.EhFramePtr.Value)
}

func TestParseHeaderRejectsBadVersion(t *testing.T) {
	_, err := Parse([]byte{2, 0, 0, 0}, 0, BaseAddresses{})
	require.Error(t, err)
}
