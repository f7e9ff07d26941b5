package glue

import "unsafe"

// writeUint64 stores v at addr in this process's own address space. Land
// uses it to plant the landing-pad address just below the restored
// stack pointer, the slot the architecture-specific trampoline's final
// RET instruction consumes.
func writeUint64(addr, v uint64) {
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = v
}
