package unwind

import (
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/frame"

	"github.com/ehwalk/ehwalk/internal/registers"
)

// ErrUnimplementedRule is returned for DWARF register rules ehwalk
// deliberately does not evaluate: RuleExpression/RuleValExpression
// require a full DWARF expression-stack interpreter, which is out of
// scope for this project's simplified CFI engine (see SPEC_FULL.md §1).
// RuleArchitectural, which has no defined meaning without per-ABI
// extensions, is rejected with a separate error that does not wrap this one.
var ErrUnimplementedRule = errors.New("unwind: unimplemented register rule")

// executeRule evaluates one delve frame.DWRule against the current
// frame's registers and CFA, producing the value that register holds in
// the caller's frame. This is a direct generalization of delve's
// (*stackIterator).executeFrameRegRule (pkg/proc/stack.go): the rule
// switch is unchanged, but values are read through unwind.SelfMemory
// instead of a ptrace'd target process, and results land in an
// internal/registers.Registers instead of delve's op.DwarfRegisters.
func executeRule(mem SelfMemory, cur *registers.Registers, regnum uint64, rule frame.DWRule, cfa uint64) (uint64, bool, error) {
	switch rule.Rule {
	default:
		fallthrough
	case frame.RuleUndefined:
		return 0, false, nil

	case frame.RuleSameVal:
		return cur.Get(regnum)

	case frame.RuleOffset:
		v, err := mem.ReadUint64(uint64(int64(cfa) + rule.Offset))
		if err != nil {
			return 0, false, fmt.Errorf("unwind: RuleOffset for reg %d: %w", regnum, err)
		}
		return v, true, nil

	case frame.RuleValOffset:
		return uint64(int64(cfa) + rule.Offset), true, nil

	case frame.RuleRegister:
		return cur.Get(rule.Reg)

	case frame.RuleExpression, frame.RuleValExpression:
		return 0, false, ErrUnimplementedRule

	case frame.RuleArchitectural:
		return 0, false, fmt.Errorf("unwind: architectural frame rules are unsupported")

	case frame.RuleCFA:
		v, ok := cur.Get(rule.Reg)
		if !ok {
			return 0, false, nil
		}
		return uint64(int64(v) + rule.Offset), true, nil

	case frame.RuleFramePointer:
		v, ok := cur.Get(rule.Reg)
		if !ok {
			return 0, false, nil
		}
		if v <= cfa {
			out, err := mem.ReadUint64(v)
			if err != nil {
				return 0, false, fmt.Errorf("unwind: RuleFramePointer for reg %d: %w", regnum, err)
			}
			return out, true, nil
		}
		return v, true, nil
	}
}

// ruleString renders a DWRule the way delve's ruleString does, used for
// trace-level logging of the register-rule program being executed.
func ruleString(rule frame.DWRule) string {
	switch rule.Rule {
	case frame.RuleUndefined:
		return "undefined"
	case frame.RuleSameVal:
		return "sameval"
	case frame.RuleOffset:
		return fmt.Sprintf("offset(%d)", rule.Offset)
	case frame.RuleValOffset:
		return fmt.Sprintf("valoffset(%d)", rule.Offset)
	case frame.RuleRegister:
		return fmt.Sprintf("register(%d)", rule.Reg)
	case frame.RuleExpression:
		return "expression"
	case frame.RuleValExpression:
		return "valexpression"
	case frame.RuleArchitectural:
		return "architectural"
	case frame.RuleCFA:
		return fmt.Sprintf("cfa(%d,%d)", rule.Reg, rule.Offset)
	case frame.RuleFramePointer:
		return fmt.Sprintf("framepointer(%d)", rule.Reg)
	default:
		return "unknown"
	}
}
