//go:build amd64

package glue

import "github.com/go-delve/delve/pkg/dwarf/regnum"

// Aliases for the DWARF register numbers glue_amd64.go needs, taken from
// delve's own table so ehwalk and delve agree on what each number means.
const (
	regnumRAX = regnum.AMD64_Rax
	regnumRBX = regnum.AMD64_Rbx
	regnumRCX = regnum.AMD64_Rcx
	regnumRDX = regnum.AMD64_Rdx
	regnumRSI = regnum.AMD64_Rsi
	regnumRDI = regnum.AMD64_Rdi
	regnumRBP = regnum.AMD64_Rbp
	regnumR8  = regnum.AMD64_R8
	regnumR9  = regnum.AMD64_R9
	regnumR10 = regnum.AMD64_R10
	regnumR11 = regnum.AMD64_R11
	regnumR12 = regnum.AMD64_R12
	regnumR13 = regnum.AMD64_R13
	regnumR14 = regnum.AMD64_R14
	regnumR15 = regnum.AMD64_R15
)
