package framefilter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/framefilter"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

func TestMatchPC(t *testing.T) {
	p := framefilter.New("pc > 0x400000")
	ok, err := p.Match(&unwind.StackFrame{PC: 0x500000})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Match(&unwind.StackFrame{PC: 0x300000})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchSignalFrame(t *testing.T) {
	p := framefilter.New("not is_signal_frame")
	ok, err := p.Match(&unwind.StackFrame{IsSignalFrame: true})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchInvalidExpression(t *testing.T) {
	p := framefilter.New("pc +")
	_, err := p.Match(&unwind.StackFrame{})
	require.Error(t, err)
}
