package object

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/ehframehdr"
)

// buildEhFrame hand-assembles a minimal .eh_frame section: one CIE with
// augmentation string "zPR" (a personality routine, DW_EH_PE_absptr
// encoded, and DW_EH_PE_udata4 FDE pointers) and one FDE referencing it,
// the same record shape scanAugmentation walks.
func buildEhFrame(t *testing.T, personality uint64, initialLoc, addrRange uint32) []byte {
	t.Helper()

	// CIE body (everything after its own length+id fields).
	var cieBody []byte
	cieBody = append(cieBody, 1)              // version
	cieBody = append(cieBody, "zPR\x00"...)   // augmentation string
	cieBody = append(cieBody, 1)              // code_alignment_factor (ULEB128)
	cieBody = append(cieBody, 0x7c)           // data_alignment_factor (SLEB128, -4)
	cieBody = append(cieBody, 16)             // return_address_register
	cieBody = append(cieBody, 10)             // augmentation_data_length (ULEB128): 1 (P enc) + 8 (ptr) + 1 (R enc)
	cieBody = append(cieBody, ehframehdr.DwEhPeAbsptr)
	var persBuf [8]byte
	binary.LittleEndian.PutUint64(persBuf[:], personality)
	cieBody = append(cieBody, persBuf[:]...)
	cieBody = append(cieBody, ehframehdr.DwEhPeUdata4) // R: fde pointer encoding

	cieRecord := make([]byte, 4) // length placeholder
	cieRecord = append(cieRecord, 0, 0, 0, 0) // cie_id == 0
	cieRecord = append(cieRecord, cieBody...)
	binary.LittleEndian.PutUint32(cieRecord[0:4], uint32(len(cieRecord)-4))

	// FDE body: cie_pointer (back-distance from this field to the start
	// of the CIE record), initial_location, address_range, no augmentation
	// data (zero-length since augStr is empty on the FDE side — "z"
	// alone means "read augmentation_data_length" even with nothing
	// else present, so emit that single zero byte).
	fdeIDFieldOffset := len(cieRecord) + 4
	cieRecordStart := 0 // the CIE is the first record in the section
	cieDistance := uint32(fdeIDFieldOffset - cieRecordStart)

	var fdeBody []byte
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], initialLoc)
	fdeBody = append(fdeBody, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], addrRange)
	fdeBody = append(fdeBody, u32[:]...)
	fdeBody = append(fdeBody, 0) // augmentation_data_length = 0

	fdeRecord := make([]byte, 4)
	var cieDistBuf [4]byte
	binary.LittleEndian.PutUint32(cieDistBuf[:], cieDistance)
	fdeRecord = append(fdeRecord, cieDistBuf[:]...)
	fdeRecord = append(fdeRecord, fdeBody...)
	binary.LittleEndian.PutUint32(fdeRecord[0:4], uint32(len(fdeRecord)-4))

	out := append(append([]byte{}, cieRecord...), fdeRecord...)
	out = append(out, 0, 0, 0, 0) // terminator
	return out
}

func TestScanAugmentationPersonalityAndRange(t *testing.T) {
	data := buildEhFrame(t, 0x401234, 0x2000, 0x100)

	entries, err := scanAugmentation(data, 0x500000, ehframehdr.BaseAddresses{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.EqualValues(t, 0x2000, e.Range.Start)
	require.EqualValues(t, 0x2100, e.Range.End)
	require.EqualValues(t, 16, e.ReturnAddrReg)
	require.NotNil(t, e.Personality)
	require.EqualValues(t, 0x401234, e.Personality.Value)
	require.Nil(t, e.LSDA)
}
