//go:build linux

package locator

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ehwalk/ehwalk/internal/addr"
)

// ptGNUEHFrame is PT_GNU_EH_FRAME, which debug/elf has no named constant
// for (it predates elf.ProgType's standard set).
const ptGNUEHFrame = elf.ProgType(0x6474e550)

// Discover is ehwalk's port of find_cfi::ld.rs. The original walks the
// dynamic linker's own loaded-module list via dl_iterate_phdr, reading
// each module's program headers directly out of memory; Go has no cgo-
// free binding for dl_iterate_phdr, so this reads the equivalent
// information from /proc/self/maps (which module is mapped where) and
// re-parses each module's ELF program headers from the file on disk to
// recover the same PT_LOAD/PT_GNU_EH_FRAME facts.
func Discover() ([]Section, error) {
	mappings, err := readSelfMaps()
	if err != nil {
		return nil, err
	}

	var sections []Section
	seen := map[string]bool{}
	for _, m := range mappings {
		if m.path == "" || seen[m.path] || !strings.HasPrefix(m.path, "/") {
			// Skip anonymous mappings and pseudo-paths ([vdso], [stack],
			// [heap], ...): none of them carry CFI of interest here.
			continue
		}
		seen[m.path] = true

		sec, ok, err := sectionForObject(m.path, m.loadBase)
		if err != nil {
			continue
		}
		if ok {
			sections = append(sections, sec)
		}
	}
	return sections, nil
}

type mapping struct {
	start, end uint64
	offset     uint64
	path       string
	// loadBase is the runtime address a vaddr of 0 in the ELF file would
	// load at, derived from this mapping's own (start, offset) pair —
	// dl_iterate_phdr's DlPhdrInfo.addr equivalent.
	loadBase uint64
}

func readSelfMaps() ([]mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("opening /proc/self/maps: %w", err)
	}
	defer f.Close()

	var out []mapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		offset, err3 := strconv.ParseUint(fields[2], 16, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		path := fields[len(fields)-1]
		out = append(out, mapping{start: start, end: end, offset: offset, path: path, loadBase: start - offset})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning /proc/self/maps: %w", err)
	}
	return out, nil
}

// sectionForObject recovers path's text range and, if present, its
// .eh_frame_hdr range, given loadBase (the runtime address corresponding
// to file offset/vaddr 0, as observed from this object's first mapping).
func sectionForObject(path string, loadBase uint64) (Section, bool, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return Section{}, false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer ef.Close()

	var text *elf.Prog
	var ehFrameHdr *elf.Prog
	var maxVaddrEnd uint64
	for _, p := range ef.Progs {
		switch {
		case p.Type == elf.PT_LOAD:
			if end := p.Vaddr + p.Memsz; end > maxVaddrEnd {
				maxVaddrEnd = end
			}
			if text == nil || p.Flags&elf.PF_X != 0 {
				text = p
			}
		case p.Type == ptGNUEHFrame:
			ehFrameHdr = p
		}
	}
	if text == nil {
		return Section{}, false, fmt.Errorf("%s has no PT_LOAD segment", path)
	}
	if ehFrameHdr == nil {
		// No .eh_frame_hdr means no cheap way to find .eh_frame's start
		// without a linear scan of the whole image; objects linked
		// without --eh-frame-hdr are skipped, matching find_cfi::ld.rs's
		// own behavior of only pushing an EhRef when both segment kinds
		// are found.
		return Section{}, false, nil
	}

	return Section{
		Name:       path,
		ObjBase:    loadBase,
		Text:       addr.Range{Start: loadBase + text.Vaddr, End: loadBase + text.Vaddr + text.Memsz},
		HasHeader:  true,
		EhFrameHdr: addr.Range{Start: loadBase + ehFrameHdr.Vaddr, End: loadBase + ehFrameHdr.Vaddr + ehFrameHdr.Memsz},
		EhFrameEnd: loadBase + maxVaddrEnd,
	}, true, nil
}
