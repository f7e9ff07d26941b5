//go:build !linux && !darwin && cgo

package locator

import (
	"unsafe"

	"github.com/ehwalk/ehwalk/internal/addr"
)

/*
// These are linker-script symbols (mirroring find_cfi::baremetal.rs's
// own __text_start/__text_end/__ehframehdr_start/__ehframehdr_end/
// __ehframe_end externs): a baremetal or freestanding build is expected
// to provide them, typically via a custom linker script placing .text,
// .eh_frame_hdr and .eh_frame at known locations. Taking their address
// (never dereferencing the symbol itself, exactly as the original does)
// recovers each boundary without a dynamic loader or /proc to query.
extern char __text_start[];
extern char __text_end[];
extern char __ehframehdr_start[];
extern char __ehframehdr_end[];
extern char __ehframe_end[];
*/
import "C"

// Discover is ehwalk's port of find_cfi::baremetal.rs: the one-object,
// whole-image case used when there is no dynamic loader to enumerate
// loaded modules. Unlike the Linux and macOS locators, there is exactly
// one Section here, spanning symbols a linker script is expected to
// define.
func Discover() ([]Section, error) {
	return []Section{
		{
			Name:       "<image>",
			ObjBase:    0,
			Text:       addr.Range{Start: symAddr(unsafe.Pointer(&C.__text_start[0])), End: symAddr(unsafe.Pointer(&C.__text_end[0]))},
			HasHeader:  true,
			EhFrameHdr: addr.Range{Start: symAddr(unsafe.Pointer(&C.__ehframehdr_start[0])), End: symAddr(unsafe.Pointer(&C.__ehframehdr_end[0]))},
			EhFrameEnd: symAddr(unsafe.Pointer(&C.__ehframe_end[0])),
		},
	}, nil
}

func symAddr(p unsafe.Pointer) uint64 { return uint64(uintptr(p)) }
