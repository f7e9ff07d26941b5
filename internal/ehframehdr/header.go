package ehframehdr

import (
	"fmt"
	"sort"
)

// Header is a parsed .eh_frame_hdr section: the version 1 GNU binary
// search table that maps a PC to the FDE covering it in O(log n) instead
// of the linear scan a raw .eh_frame section would require.
type Header struct {
	// EhFramePtr is the decoded pointer to the start of the .eh_frame
	// section this header indexes.
	EhFramePtr Pointer

	// table is sorted ascending by InitialLoc (the GNU linker guarantees
	// this at link time; Parse re-sorts defensively in case it is fed a
	// hand-built or corrupted section).
	table []tableEntry
}

type tableEntry struct {
	InitialLoc uint64
	FDEAddr    uint64
}

// Parse decodes a raw .eh_frame_hdr section, whose bytes live at
// sectionAddr within the target's address space (used to resolve
// DW_EH_PE_pcrel-encoded fields), relative to bases.
func Parse(data []byte, sectionAddr uint64, bases BaseAddresses) (*Header, error) {
	d := newDecoder(data, sectionAddr)

	version, err := d.u8()
	if err != nil {
		return nil, fmt.Errorf("ehframehdr: reading version: %w", err)
	}
	if version != 1 {
		return nil, fmt.Errorf("ehframehdr: unsupported .eh_frame_hdr version %d", version)
	}

	ehFramePtrEnc, err := d.u8()
	if err != nil {
		return nil, err
	}
	fdeCountEnc, err := d.u8()
	if err != nil {
		return nil, err
	}
	tableEnc, err := d.u8()
	if err != nil {
		return nil, err
	}

	var ehFramePtr Pointer
	if ehFramePtrEnc != DwEhPeOmit {
		ehFramePtr, err = d.pointer(ehFramePtrEnc, bases)
		if err != nil {
			return nil, fmt.Errorf("ehframehdr: reading eh_frame_ptr: %w", err)
		}
	}

	if fdeCountEnc == DwEhPeOmit {
		// No binary search table; the header only advertises the
		// .eh_frame pointer, and Lookup reports no match for any pc.
		return &Header{EhFramePtr: ehFramePtr}, nil
	}

	fdeCountPtr, err := d.pointer(fdeCountEnc, bases)
	if err != nil {
		return nil, fmt.Errorf("ehframehdr: reading fde_count: %w", err)
	}
	fdeCount := fdeCountPtr.Value

	if tableEnc == DwEhPeOmit {
		return nil, fmt.Errorf("ehframehdr: fde_count present but table_enc is DW_EH_PE_omit")
	}

	table := make([]tableEntry, 0, fdeCount)
	for i := uint64(0); i < fdeCount; i++ {
		initialLoc, err := d.pointer(tableEnc, bases)
		if err != nil {
			return nil, fmt.Errorf("ehframehdr: reading table entry %d initial_loc: %w", i, err)
		}
		fdeAddr, err := d.pointer(tableEnc, bases)
		if err != nil {
			return nil, fmt.Errorf("ehframehdr: reading table entry %d fde_addr: %w", i, err)
		}
		table = append(table, tableEntry{InitialLoc: initialLoc.Value, FDEAddr: fdeAddr.Value})
	}

	sort.Slice(table, func(i, j int) bool { return table[i].InitialLoc < table[j].InitialLoc })

	return &Header{EhFramePtr: ehFramePtr, table: table}, nil
}

// HasTable reports whether the header carries a binary search table, as
// opposed to only an .eh_frame pointer.
func (h *Header) HasTable() bool { return len(h.table) > 0 }

// Lookup returns the absolute address of the FDE that may cover pc: the
// table entry with the largest InitialLoc not exceeding pc. The caller
// still must parse that FDE and check pc against its address range,
// since the search table only narrows to "the FDE whose function starts
// at or before pc", not a provably tight bound.
func (h *Header) Lookup(pc uint64) (fdeAddr uint64, ok bool) {
	if len(h.table) == 0 {
		return 0, false
	}
	// sort.Search finds the first index whose InitialLoc > pc; the entry
	// just before it is the last one not exceeding pc.
	i := sort.Search(len(h.table), func(i int) bool {
		return h.table[i].InitialLoc > pc
	})
	if i == 0 {
		return 0, false
	}
	return h.table[i-1].FDEAddr, true
}
