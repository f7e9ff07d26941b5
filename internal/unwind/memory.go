package unwind

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// SelfMemory reads the unwinding process's own address space directly
// through unsafe pointer dereferences. ehwalk only ever unwinds its own
// call stack (the personality-routine ABI it drives runs in-process
// during a throw, never across a ptrace boundary), so there is no need
// for the /proc/pid/mem-style remote memory reader delve's debugger uses.
type SelfMemory struct{}

// ReadAt implements ehframehdr.MemoryReader and the reader used by
// rules.go's RuleOffset/RuleFramePointer handling.
func (SelfMemory) ReadAt(addr uint64, buf []byte) error {
	if addr == 0 {
		return fmt.Errorf("unwind: read from nil address")
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(buf))
	copy(buf, src)
	return nil
}

// ReadUint64 is a small convenience wrapper used throughout the unwind
// algorithm, which only ever needs to dereference pointer-sized values
// (saved registers, return addresses).
func (m SelfMemory) ReadUint64(addr uint64) (uint64, error) {
	var buf [8]byte
	if err := m.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
