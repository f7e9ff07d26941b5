package object

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ehwalk/ehwalk/internal/addr"
	"github.com/ehwalk/ehwalk/internal/ehframehdr"
)

// augEntry is the per-FDE information that lives in .eh_frame's CIE/FDE
// augmentation data but that github.com/go-delve/delve/pkg/dwarf/frame has
// no reason to expose, since Go's own runtime never uses a DWARF
// personality routine or language-specific data area. ehwalk's personality
// driver (internal/personality) is exactly the consumer delve lacks, so
// this file hand-parses the 'z'-prefixed augmentation string the Itanium
// C++ ABI defines on top of the base CIE/FDE layout, grounded on the LSB
// core spec's ".eh_frame section" appendix and cross-checked against
// other_examples' pattyshack-bad eh_frame_section.go reader.
type augEntry struct {
	Range         addr.Range
	Personality   *ehframehdr.Pointer
	LSDA          *ehframehdr.Pointer
	ReturnAddrReg uint64
	IsSignalFrame bool
}

type cieAug struct {
	augStr        string
	fdeEncoding   uint8
	lsdaEncoding  uint8
	personality   *ehframehdr.Pointer
	returnAddrReg uint64
	isSignalFrame bool
}

// scanAugmentation walks every CIE/FDE record in a raw .eh_frame section
// and returns the personality/LSDA/range facts for each FDE. It duplicates
// just enough of the CIE/FDE record walk that github.com/go-delve/delve's
// frame package also does internally, because that walk is the only way
// to reach the augmentation bytes; the actual unwind-row algorithm (CFA
// and register rules) still comes from delve's frame.Parse/EstablishFrame,
// called from object.go.
func scanAugmentation(data []byte, sectionAddr uint64, bases ehframehdr.BaseAddresses) ([]augEntry, error) {
	var entries []augEntry
	cies := map[int]*cieAug{}

	pos := 0
	for pos < len(data) {
		recordStart := pos
		if pos+4 > len(data) {
			break
		}
		length := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		if length == 0 {
			// Zero-length "terminator" entry; GNU ld emits one at the end
			// of .eh_frame.
			break
		}
		if length == 0xffffffff {
			return nil, fmt.Errorf("object: 64-bit DWARF .eh_frame extension is not supported")
		}
		recordEnd := pos + int(length)
		if recordEnd > len(data) {
			return nil, fmt.Errorf("object: .eh_frame record at offset %d overruns section", recordStart)
		}

		idFieldOffset := pos
		if pos+4 > len(data) {
			return nil, fmt.Errorf("object: truncated CIE pointer at offset %d", pos)
		}
		cieID := binary.LittleEndian.Uint32(data[pos:])
		pos += 4

		if cieID == 0 {
			aug, err := parseCIE(data[pos:recordEnd], sectionAddr+uint64(pos), bases)
			if err != nil {
				return nil, fmt.Errorf("object: parsing CIE at offset %d: %w", recordStart, err)
			}
			cies[recordStart] = aug
			pos = recordEnd
			continue
		}

		cieOffset := idFieldOffset - int(cieID)
		cie, ok := cies[cieOffset]
		if !ok {
			return nil, fmt.Errorf("object: FDE at offset %d references unseen CIE at offset %d", recordStart, cieOffset)
		}

		d := ehframehdr.NewDecoder(data, sectionAddr)
		d.SetPos(pos)
		initialLoc, err := d.Pointer(cie.fdeEncoding, bases)
		if err != nil {
			return nil, fmt.Errorf("object: FDE at offset %d: initial_location: %w", recordStart, err)
		}
		addrRange, err := d.Pointer(cie.fdeEncoding&0x0f, bases)
		if err != nil {
			return nil, fmt.Errorf("object: FDE at offset %d: address_range: %w", recordStart, err)
		}

		var lsda *ehframehdr.Pointer
		if strings.Contains(cie.augStr, "z") {
			augLen, err := d.ULEB128()
			if err != nil {
				return nil, fmt.Errorf("object: FDE at offset %d: augmentation_data_length: %w", recordStart, err)
			}
			augEnd := d.Pos() + int(augLen)
			if strings.Contains(cie.augStr, "L") {
				p, err := d.Pointer(cie.lsdaEncoding, bases)
				if err != nil {
					return nil, fmt.Errorf("object: FDE at offset %d: LSDA pointer: %w", recordStart, err)
				}
				lsda = &p
			}
			d.SetPos(augEnd)
		}

		entries = append(entries, augEntry{
			Range:         addr.Range{Start: initialLoc.Value, End: initialLoc.Value + addrRange.Value},
			Personality:   cie.personality,
			LSDA:          lsda,
			ReturnAddrReg: cie.returnAddrReg,
			IsSignalFrame: cie.isSignalFrame,
		})

		pos = recordEnd
	}

	return entries, nil
}

func parseCIE(body []byte, bodyAddr uint64, bases ehframehdr.BaseAddresses) (*cieAug, error) {
	d := ehframehdr.NewDecoder(body, bodyAddr)

	version, err := d.U8()
	if err != nil {
		return nil, err
	}

	augStr, err := d.CString()
	if err != nil {
		return nil, err
	}

	if version == 4 {
		if _, err := d.U8(); err != nil { // address_size
			return nil, err
		}
		if _, err := d.U8(); err != nil { // segment_selector_size
			return nil, err
		}
	}

	if _, err := d.ULEB128(); err != nil { // code_alignment_factor
		return nil, err
	}
	if _, err := d.SLEB128(); err != nil { // data_alignment_factor
		return nil, err
	}

	var raReg uint64
	if version == 1 {
		b, err := d.U8()
		if err != nil {
			return nil, err
		}
		raReg = uint64(b)
	} else {
		raReg, err = d.ULEB128()
		if err != nil {
			return nil, err
		}
	}

	aug := &cieAug{augStr: augStr, returnAddrReg: raReg, fdeEncoding: ehframehdr.DwEhPeAbsptr}

	if strings.HasPrefix(augStr, "z") {
		augLen, err := d.ULEB128()
		if err != nil {
			return nil, err
		}
		augEnd := d.Pos() + int(augLen)

		for _, c := range augStr[1:] {
			switch c {
			case 'L':
				enc, err := d.U8()
				if err != nil {
					return nil, err
				}
				aug.lsdaEncoding = enc
			case 'P':
				enc, err := d.U8()
				if err != nil {
					return nil, err
				}
				p, err := d.Pointer(enc, bases)
				if err != nil {
					return nil, fmt.Errorf("parsing personality pointer: %w", err)
				}
				aug.personality = &p
			case 'R':
				enc, err := d.U8()
				if err != nil {
					return nil, err
				}
				aug.fdeEncoding = enc
			case 'S':
				aug.isSignalFrame = true
			default:
				// Unknown augmentation letter: the augmentation_data_length
				// lets us skip past it regardless of whether we understand it.
			}
		}

		d.SetPos(augEnd)
	}

	return aug, nil
}
