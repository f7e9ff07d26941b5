//go:build darwin && cgo

package locator

import (
	"debug/macho"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/ehwalk/ehwalk/internal/addr"
)

/*
#include <mach-o/dyld.h>

static int ehwalk_image_count(void) {
	return (int)_dyld_image_count();
}

static const char *ehwalk_image_name(int i) {
	return _dyld_get_image_name((uint32_t)i);
}

static unsigned long ehwalk_image_slide(int i) {
	return (unsigned long)_dyld_get_image_vmaddr_slide((uint32_t)i);
}
*/
import "C"

// Discover is ehwalk's port of find_cfi::macos.rs. The original walks
// every loaded Mach-O image via the findshlibs crate (backed by dyld's
// own image-introspection API), mmaps each image's file and parses it
// with the object crate to recover its __TEXT segment and __eh_frame
// section. This does the same with Go's debug/macho plus the dyld APIs
// directly via cgo (Go's stdlib has no dl_iterate_phdr-equivalent
// binding for Mach-O), reading each object's __eh_frame bytes from the
// mmap'd file itself rather than from live memory — matching the
// original, which reads __eh_frame out of the file for the same reason:
// unlike findshlibs' segment addresses, object's section data accessors
// only know how to read from the file.
func Discover() ([]Section, error) {
	count := int(C.ehwalk_image_count())

	var sections []Section
	for i := 0; i < count; i++ {
		cName := C.ehwalk_image_name(C.int(i))
		if cName == nil {
			continue
		}
		path := C.GoString(cName)
		slide := uint64(C.ehwalk_image_slide(C.int(i)))

		sec, ok, err := sectionForImage(path, slide)
		if err != nil {
			continue
		}
		if ok {
			sections = append(sections, sec)
		}
	}
	return sections, nil
}

func sectionForImage(path string, slide uint64) (Section, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Section{}, false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Section{}, false, fmt.Errorf("mmapping %s: %w", path, err)
	}
	defer mapped.Unmap()

	mf, err := macho.NewFile(&memReaderAt{mapped})
	if err != nil {
		return Section{}, false, fmt.Errorf("parsing Mach-O %s: %w", path, err)
	}
	defer mf.Close()

	textSeg := mf.Segment("__TEXT")
	if textSeg == nil {
		return Section{}, false, fmt.Errorf("%s has no __TEXT segment", path)
	}

	ehFrameSec := mf.Section("__eh_frame")
	if ehFrameSec == nil {
		return Section{}, false, nil
	}
	ehFrameBytes, err := ehFrameSec.Data()
	if err != nil {
		return Section{}, false, fmt.Errorf("reading __eh_frame from %s: %w", path, err)
	}

	return Section{
		Name:    path,
		ObjBase: slide,
		Text:    addr.Range{Start: slide + textSeg.Addr, End: slide + textSeg.Addr + textSeg.Memsz},
		// EhFrame carries the address this section would have at
		// runtime (needed so DW_EH_PE_pcrel-encoded personality/LSDA
		// pointers inside it resolve correctly); EhFrameData supplies
		// the bytes directly since they were read from the file, not
		// this live address.
		EhFrame:     addr.Range{Start: slide + ehFrameSec.Addr, End: slide + ehFrameSec.Addr + ehFrameSec.Size},
		EhFrameData: ehFrameBytes,
	}, true, nil
}

// memReaderAt adapts an mmap.MMap ([]byte) to io.ReaderAt for
// debug/macho.NewFile, which requires random access rather than a
// plain io.Reader.
type memReaderAt struct {
	data []byte
}

func (m *memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, fmt.Errorf("locator: read past end of mapped file")
	}
	n := copy(p, m.data[off:])
	return n, nil
}
