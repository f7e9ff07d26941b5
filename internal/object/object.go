// Package object models one loaded code object (an executable or shared
// library) as far as unwinding needs to know about it: its text range, its
// parsed .eh_frame (via github.com/go-delve/delve/pkg/dwarf/frame, the same
// CIE/FDE/call-frame-instruction engine delve uses for Go's own .debug_frame),
// its optional .eh_frame_hdr search table, and the personality/LSDA
// augmentation facts delve's frame package has no reason to expose.
//
// This is ehwalk's version of the original source's ObjectRecord /
// DwarfUnwinder::default assembly step (src/lib.rs), generalized so a
// single record works whether or not the object carries a .eh_frame_hdr.
package object

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/go-delve/delve/pkg/dwarf/frame"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ehwalk/ehwalk/internal/addr"
	"github.com/ehwalk/ehwalk/internal/ehframehdr"
)

// rowCacheSize bounds the per-object LRU of already-established unwind
// rows, trading a little memory for avoiding re-running the CFI program
// for hot PCs (tight recursive loops unwound over and over within one
// trace, or repeated traces from the same call site).
const rowCacheSize = 256

// Record is a parsed, query-ready object: one ELF/Mach-O image's worth of
// call frame information.
type Record struct {
	Name string
	Text addr.Range

	fdes frame.FrameDescriptionEntries
	hdr  *ehframehdr.Header
	aug  []augEntry

	mu       sync.Mutex
	rowCache *lru.Cache
}

// Info is everything the unwinder needs about the frame covering one
// return address: the delve-computed CFA/register-rule row, and the
// personality/LSDA/return-address-register facts this package's own
// augmentation scan contributes.
type Info struct {
	Context        *frame.FrameContext
	InitialAddress uint64
	Personality    *ehframehdr.Pointer
	LSDA           *ehframehdr.Pointer
	ReturnAddrReg  uint64
	IsSignalFrame  bool
}

// ErrNoUnwindInfoForAddress is returned by UnwindInfoForAddress when no
// FDE in the object covers pc. A pc outside every loaded object's text
// range is reported by the caller that did the object lookup, not with
// this error.
type ErrNoUnwindInfoForAddress struct {
	PC uint64
}

func (e *ErrNoUnwindInfoForAddress) Error() string {
	return fmt.Sprintf("object: no unwind info for address 0x%x", e.PC)
}

// EmptySource is an unwind.ObjectSource with no objects registered,
// used as the host personality driver's initial state before
// internal/locator has discovered any CFI (see
// internal/personality.SetObjectSource).
type EmptySource struct{}

// ObjectForPC always reports no match.
func (EmptySource) ObjectForPC(pc uint64) (*Record, bool) { return nil, false }

// New parses ehFrame (required) and, if present, ehFrameHdr into a Record
// for the object occupying text. ehFrameAddr/ehFrameHdrAddr are the
// section's runtime load addresses, needed to resolve PC-relative
// encodings.
func New(name string, text addr.Range, ehFrame []byte, ehFrameAddr uint64, ehFrameHdr []byte, ehFrameHdrAddr uint64, bases ehframehdr.BaseAddresses, ptrSize int) (*Record, error) {
	fdes, err := frame.Parse(ehFrame, binary.LittleEndian, bases.Text, ptrSize, ehFrameAddr)
	if err != nil {
		return nil, fmt.Errorf("object: parsing .eh_frame for %s: %w", name, err)
	}

	aug, err := scanAugmentation(ehFrame, ehFrameAddr, bases)
	if err != nil {
		return nil, fmt.Errorf("object: scanning .eh_frame augmentation for %s: %w", name, err)
	}
	sort.Slice(aug, func(i, j int) bool { return aug[i].Range.Start < aug[j].Range.Start })

	var hdr *ehframehdr.Header
	if len(ehFrameHdr) > 0 {
		// GCC's own .eh_frame_hdr reader (unwind-dw2-fde-glibc.c's
		// base_of_encoded_value) resolves a DW_EH_PE_datarel-encoded
		// field inside this section relative to the header's own start
		// address, not the object's load base used for everything else
		// in bases — the header predates any notion of a per-object data
		// segment base.
		headerBases := bases
		headerBases.Data = ehFrameHdrAddr
		hdr, err = ehframehdr.Parse(ehFrameHdr, ehFrameHdrAddr, headerBases)
		if err != nil {
			return nil, fmt.Errorf("object: parsing .eh_frame_hdr for %s: %w", name, err)
		}
	}

	cache, err := lru.New(rowCacheSize)
	if err != nil {
		return nil, fmt.Errorf("object: creating row cache: %w", err)
	}

	return &Record{
		Name:     name,
		Text:     text,
		fdes:     fdes,
		hdr:      hdr,
		aug:      aug,
		rowCache: cache,
	}, nil
}

// HasSearchTable reports whether this object carried a .eh_frame_hdr
// with a binary search table. This is diagnostic only (surfaced by the
// `sections` command): UnwindInfoForAddress always looks up FDEs via
// frame.FrameDescriptionEntries.FDEForPC, which performs its own binary
// search over the FDE list New already parsed in full, so the header's
// table is never consulted to resolve a lookup.
func (r *Record) HasSearchTable() bool { return r.hdr != nil && r.hdr.HasTable() }

// UnwindInfoForAddress returns the unwind info covering pc, which must
// already be known to lie within r.Text.
func (r *Record) UnwindInfoForAddress(pc uint64) (*Info, error) {
	if cached, ok := r.cachedRow(pc); ok {
		return cached, nil
	}

	fde, err := r.fdes.FDEForPC(pc)
	if err != nil {
		return nil, &ErrNoUnwindInfoForAddress{PC: pc}
	}

	ctx, err := fde.EstablishFrame(pc)
	if err != nil {
		return nil, fmt.Errorf("object: establishing frame for 0x%x: %w", pc, err)
	}

	a := r.augFor(pc)

	info := &Info{
		Context:        ctx,
		InitialAddress: fde.Begin(),
	}
	if a != nil {
		info.Personality = a.Personality
		info.LSDA = a.LSDA
		info.ReturnAddrReg = a.ReturnAddrReg
		info.IsSignalFrame = a.IsSignalFrame
	}

	r.storeRow(pc, info)
	return info, nil
}

func (r *Record) augFor(pc uint64) *augEntry {
	i := sort.Search(len(r.aug), func(i int) bool { return r.aug[i].Range.Start > pc })
	if i == 0 {
		return nil
	}
	candidate := &r.aug[i-1]
	if !candidate.Range.Contains(pc) {
		return nil
	}
	return candidate
}

func (r *Record) cachedRow(pc uint64) (*Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rowCache.Get(pc)
	if !ok {
		return nil, false
	}
	return v.(*Info), true
}

func (r *Record) storeRow(pc uint64, info *Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rowCache.Add(pc, info)
}
