package registers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/registers"
)

func TestUnsetRegisterIsUnknown(t *testing.T) {
	r := registers.New(archspec.AMD64())
	_, ok := r.Get(3)
	require.False(t, ok)
}

func TestSetGet(t *testing.T) {
	r := registers.New(archspec.AMD64())
	r.Set(5, 0xdeadbeef)
	v, ok := r.Get(5)
	require.True(t, ok)
	require.EqualValues(t, 0xdeadbeef, v)
}

func TestClearMarksUnknown(t *testing.T) {
	r := registers.New(archspec.AMD64())
	r.Set(5, 1)
	r.Clear(5)
	_, ok := r.Get(5)
	require.False(t, ok)
}

func TestSetGrowsBeyondMaxRegNum(t *testing.T) {
	r := registers.New(archspec.AMD64())
	huge := uint64(r.Len() + 50)
	r.Set(huge, 7)
	v, ok := r.Get(huge)
	require.True(t, ok)
	require.EqualValues(t, 7, v)
}

func TestCloneIsIndependent(t *testing.T) {
	r := registers.New(archspec.AMD64())
	r.SetSP(0x1000)
	c := r.Clone()
	c.SetSP(0x2000)

	sp, _ := r.SP()
	require.EqualValues(t, 0x1000, sp)
	csp, _ := c.SP()
	require.EqualValues(t, 0x2000, csp)
}

func TestSPPCRAAccessors(t *testing.T) {
	arch := archspec.ARM64()
	r := registers.New(arch)
	r.SetSP(1)
	r.SetPC(2)
	r.SetRA(3)

	sp, ok := r.SP()
	require.True(t, ok)
	require.EqualValues(t, 1, sp)

	pc, ok := r.PC()
	require.True(t, ok)
	require.EqualValues(t, 2, pc)

	ra, ok := r.RA()
	require.True(t, ok)
	require.EqualValues(t, 3, ra)
}
