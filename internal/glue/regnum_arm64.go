//go:build arm64

package glue

import "github.com/go-delve/delve/pkg/dwarf/regnum"

// Base DWARF register number for x19, the first AAPCS64 callee-saved
// integer register; X19..X29 are numbered sequentially from here, and
// this constant anchors capturedARM64's field-to-regnum mapping.
const regnumX19 = regnum.ARM64_X0 + 19

// regnumD8 is the base DWARF register number for d8, the first
// callee-saved AAPCS64 floating-point register; d8..d15 follow
// sequentially.
const regnumD8 = regnum.ARM64_V0 + 8
