// Package locator discovers the call frame information already mapped
// into the running process's own address space: for every loaded
// executable or shared library, its text range and either its
// .eh_frame_hdr search table or (failing that) its raw .eh_frame range.
//
// This is ehwalk's port of the original source's find_cfi module: one
// Discover implementation per platform (locator_linux.go,
// locator_darwin.go, locator_baremetal.go), selected by the same build
// tags find_cfi/mod.rs selects its three modules with cfg attributes,
// feeding a common Registry that satisfies unwind.ObjectSource.
package locator

import (
	"fmt"
	"sort"

	"github.com/ehwalk/ehwalk/internal/addr"
	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/ehframehdr"
	"github.com/ehwalk/ehwalk/internal/logflags"
	"github.com/ehwalk/ehwalk/internal/object"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Section is the address-range facts one platform's Discover
// implementation recovers for a single loaded object. It is ehwalk's
// equivalent of the original source's EhRef enum, expressed as a struct
// with a discriminant instead of a Go sum type: HasHeader selects which
// of EhFrameHdr/EhFrameEnd (the WithHeader case) or EhFrame (the
// WithoutHeader case) is populated.
type Section struct {
	Name    string
	ObjBase uint64
	Text    addr.Range

	// HasHeader is true when the object carries a .eh_frame_hdr section
	// (the common case on modern Linux toolchains using
	// -Wl,--eh-frame-hdr). EhFrameHdr is that section's address range;
	// EhFrameEnd is an upper bound on where .eh_frame ends (the object's
	// highest PT_LOAD address), matching find_cfi::ld.rs's own
	// "This is an upper bound, not the exact address" comment — the
	// precise start is recovered from the header's own eh_frame_ptr
	// field once parsed, in Build below.
	HasHeader  bool
	EhFrameHdr addr.Range
	EhFrameEnd uint64

	// EhFrame is populated directly in the WithoutHeader case (macOS,
	// where Mach-O carries no equivalent of .eh_frame_hdr).
	EhFrame addr.Range

	// EhFrameData, when non-nil, supplies the .eh_frame bytes directly
	// instead of having Build read them out of live memory at
	// EhFrame.Start. macOS's Discover populates this: __eh_frame is read
	// from the mmap'd file (matching find_cfi::macos.rs), not the
	// running image, so there is no live address to read it back from.
	EhFrameData []byte
}

// Registry is an unwind.ObjectSource built from the Sections a
// platform's Discover found, one object.Record per loaded image.
type Registry struct {
	records []*object.Record
}

// Load runs the host platform's Discover and parses every section it
// finds into a Registry ready to back a personality.Driver.
func Load() (*Registry, error) {
	sections, err := Discover()
	if err != nil {
		return nil, fmt.Errorf("locator: discovering CFI: %w", err)
	}
	return Build(sections)
}

// Build parses sections (as found by a platform's Discover, or supplied
// directly by a test) into a Registry.
func Build(sections []Section) (*Registry, error) {
	logger := logflags.LocatorLogger()
	arch := archspec.Host()
	var mem unwind.SelfMemory

	reg := &Registry{}
	for _, s := range sections {
		rec, err := buildRecord(s, arch, mem)
		if err != nil {
			logger.Warnf("locator: skipping %s: %v", s.Name, err)
			continue
		}
		if logflags.Locator() {
			logger.Debugf("registered %s text=%s", s.Name, s.Text)
		}
		reg.records = append(reg.records, rec)
	}

	sort.Slice(reg.records, func(i, j int) bool { return reg.records[i].Text.Start < reg.records[j].Text.Start })
	return reg, nil
}

func buildRecord(s Section, arch *archspec.Arch, mem unwind.SelfMemory) (*object.Record, error) {
	ehFrameRange := s.EhFrame
	var hdrBytes []byte
	var hdrAddr uint64

	if s.HasHeader {
		if s.EhFrameHdr.Empty() {
			return nil, fmt.Errorf("object carries no usable .eh_frame_hdr range")
		}
		hdrAddr = s.EhFrameHdr.Start
		hdrBytes = make([]byte, s.EhFrameHdr.Len())
		if err := mem.ReadAt(hdrAddr, hdrBytes); err != nil {
			return nil, fmt.Errorf("reading .eh_frame_hdr: %w", err)
		}

		// A first pass with bases.EhFrame left unresolved: the header's
		// own fields (eh_frame_ptr, fde_count, the search table) never
		// reference it, only the header's own address and the object's
		// text range (see ehframehdr.Parse). Data is the header's own
		// start address, not the object's load base: a
		// DW_EH_PE_datarel-encoded field inside .eh_frame_hdr is relative
		// to that section's own start, per GCC's base_of_encoded_value.
		probeBases := ehframehdr.BaseAddresses{Text: s.Text.Start, EhFrameHdr: hdrAddr, Data: hdrAddr}
		hdr, err := ehframehdr.Parse(hdrBytes, hdrAddr, probeBases)
		if err != nil {
			return nil, fmt.Errorf("parsing .eh_frame_hdr: %w", err)
		}
		ehFrameStart, err := hdr.EhFramePtr.Deref(mem)
		if err != nil {
			return nil, fmt.Errorf("resolving .eh_frame address from header: %w", err)
		}
		if ehFrameStart == 0 || s.EhFrameEnd <= ehFrameStart {
			return nil, fmt.Errorf("header resolved an implausible .eh_frame range [0x%x, 0x%x)", ehFrameStart, s.EhFrameEnd)
		}
		ehFrameRange = addr.Range{Start: ehFrameStart, End: s.EhFrameEnd}
	}

	var ehFrameBytes []byte
	switch {
	case s.EhFrameData != nil:
		ehFrameBytes = s.EhFrameData
	case !ehFrameRange.Empty():
		ehFrameBytes = make([]byte, ehFrameRange.Len())
		if err := mem.ReadAt(ehFrameRange.Start, ehFrameBytes); err != nil {
			return nil, fmt.Errorf("reading .eh_frame: %w", err)
		}
	default:
		return nil, fmt.Errorf("no .eh_frame range resolved")
	}

	bases := ehframehdr.BaseAddresses{
		Text:       s.Text.Start,
		EhFrame:    ehFrameRange.Start,
		EhFrameHdr: hdrAddr,
		Data:       s.ObjBase,
	}

	rec, err := object.New(s.Name, s.Text, ehFrameBytes, ehFrameRange.Start, hdrBytes, hdrAddr, bases, arch.PtrSize)
	if err != nil {
		return nil, fmt.Errorf("parsing object: %w", err)
	}
	return rec, nil
}

// ObjectForPC implements unwind.ObjectSource: a binary search over
// records sorted by their text range's start address.
func (reg *Registry) ObjectForPC(pc uint64) (*object.Record, bool) {
	i := sort.Search(len(reg.records), func(i int) bool { return reg.records[i].Text.Start > pc })
	if i == 0 {
		return nil, false
	}
	rec := reg.records[i-1]
	if !rec.Text.Contains(pc) {
		return nil, false
	}
	return rec, true
}

// Records exposes the discovered objects for callers (cmd/ehwalk's
// `sections` subcommand) that want to list them rather than look one up.
func (reg *Registry) Records() []*object.Record {
	out := make([]*object.Record, len(reg.records))
	copy(out, reg.records)
	return out
}
