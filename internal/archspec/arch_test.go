package archspec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/archspec"
)

func TestAMD64RipDoublesAsReturnAddressRegister(t *testing.T) {
	a := archspec.AMD64()
	require.Equal(t, "amd64", a.Name)
	require.Equal(t, 8, a.PtrSize)
	require.False(t, a.UsesLR)
	require.Equal(t, a.PCRegNum, a.RARegNum)
}

func TestARM64UsesLinkRegisterForReturnAddress(t *testing.T) {
	a := archspec.ARM64()
	require.Equal(t, "arm64", a.Name)
	require.True(t, a.UsesLR)
	require.NotEqual(t, a.PCRegNum, a.RARegNum)
	require.Greater(t, a.MaxRegNum, 0)
}

func TestHostMatchesBuildArchitecture(t *testing.T) {
	h := archspec.Host()
	require.Contains(t, []string{"amd64", "arm64"}, h.Name)
}
