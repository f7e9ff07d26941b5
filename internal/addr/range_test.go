package addr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/addr"
)

func TestRangeContains(t *testing.T) {
	r := addr.Range{Start: 0x1000, End: 0x2000}
	require.True(t, r.Contains(0x1000))
	require.True(t, r.Contains(0x1fff))
	require.False(t, r.Contains(0x2000))
	require.False(t, r.Contains(0xfff))
}

func TestRangeLenAndEmpty(t *testing.T) {
	r := addr.Range{Start: 0x1000, End: 0x1010}
	require.EqualValues(t, 0x10, r.Len())
	require.False(t, r.Empty())

	empty := addr.Range{Start: 0x1000, End: 0x1000}
	require.True(t, empty.Empty())

	malformed := addr.Range{Start: 0x1000, End: 0x0}
	require.EqualValues(t, 0, malformed.Len())
	require.True(t, malformed.Empty())
}

func TestSaturatingSub(t *testing.T) {
	require.EqualValues(t, 5, addr.SaturatingSub(10, 5))
	require.EqualValues(t, 0, addr.SaturatingSub(5, 10))
}
