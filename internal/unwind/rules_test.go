package unwind

import (
	"testing"
	"unsafe"

	"github.com/go-delve/delve/pkg/dwarf/frame"
	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/registers"
)

func TestExecuteRuleUndefined(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	_, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleUndefined}, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecuteRuleSameVal(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	cur.Set(3, 42)
	v, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleSameVal}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, v)
}

func TestExecuteRuleValOffset(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	v, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleValOffset, Offset: 16}, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x1010, v)
}

func TestExecuteRuleOffsetReadsMemory(t *testing.T) {
	// RuleOffset dereferences cfa+offset through SelfMemory; point it at
	// a real local variable's address so the read is well-defined.
	var backing uint64 = 0xcafef00d
	addr := uint64(uintptr(unsafe.Pointer(&backing)))

	cur := registers.New(archspec.AMD64())
	v, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleOffset, Offset: 0}, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0xcafef00d, v)
}

func TestExecuteRuleRegister(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	cur.Set(6, 99)
	v, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleRegister, Reg: 6}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 99, v)
}

func TestExecuteRuleCFA(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	cur.Set(7, 0x2000)
	v, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleCFA, Reg: 7, Offset: 8}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x2008, v)
}

func TestExecuteRuleExpressionUnimplemented(t *testing.T) {
	cur := registers.New(archspec.AMD64())
	_, ok, err := executeRule(SelfMemory{}, cur, 3, frame.DWRule{Rule: frame.RuleExpression}, 0)
	require.ErrorIs(t, err, ErrUnimplementedRule)
	require.False(t, ok)
}

func TestRuleString(t *testing.T) {
	require.Equal(t, "offset(-8)", ruleString(frame.DWRule{Rule: frame.RuleOffset, Offset: -8}))
	require.Equal(t, "register(6)", ruleString(frame.DWRule{Rule: frame.RuleRegister, Reg: 6}))
	require.Equal(t, "undefined", ruleString(frame.DWRule{Rule: frame.RuleUndefined}))
}
