package locator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/addr"
	"github.com/ehwalk/ehwalk/internal/locator"
)

func TestBuildWithoutHeaderUsesSuppliedBytes(t *testing.T) {
	// A minimal (empty) .eh_frame: just the zero-length terminator record
	// frame.Parse and scanAugmentation both treat as "no entries", enough
	// to exercise Build's WithoutHeader/EhFrameData path (macOS's shape)
	// without needing a live memory read.
	ehFrame := []byte{0, 0, 0, 0}

	reg, err := locator.Build([]locator.Section{
		{
			Name:        "libfoo",
			Text:        addr.Range{Start: 0x100000, End: 0x200000},
			EhFrame:     addr.Range{Start: 0x300000, End: 0x300004},
			EhFrameData: ehFrame,
		},
	})
	require.NoError(t, err)
	require.Len(t, reg.Records(), 1)
	require.Equal(t, "libfoo", reg.Records()[0].Name)

	rec, ok := reg.ObjectForPC(0x150000)
	require.True(t, ok)
	require.Equal(t, "libfoo", rec.Name)

	_, ok = reg.ObjectForPC(0x900000)
	require.False(t, ok)
}

func TestBuildSkipsSectionWithNoEhFrameRange(t *testing.T) {
	reg, err := locator.Build([]locator.Section{
		{Name: "nothing", Text: addr.Range{Start: 0x100000, End: 0x200000}},
	})
	require.NoError(t, err)
	require.Empty(t, reg.Records())
}

func TestBuildSortsRecordsByTextStart(t *testing.T) {
	ehFrame := []byte{0, 0, 0, 0}
	reg, err := locator.Build([]locator.Section{
		{Name: "second", Text: addr.Range{Start: 0x500000, End: 0x600000}, EhFrame: addr.Range{Start: 0x700000, End: 0x700004}, EhFrameData: ehFrame},
		{Name: "first", Text: addr.Range{Start: 0x100000, End: 0x200000}, EhFrame: addr.Range{Start: 0x300000, End: 0x300004}, EhFrameData: ehFrame},
	})
	require.NoError(t, err)
	require.Len(t, reg.Records(), 2)
	require.Equal(t, "first", reg.Records()[0].Name)
	require.Equal(t, "second", reg.Records()[1].Name)
}
