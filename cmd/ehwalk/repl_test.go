package main

import (
	"bufio"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// TestREPLDispatchOverRealTerminal drives runREPL's input loop over a
// real pseudo-terminal rather than a pipe: liner (like the teacher's own
// terminal package) behaves differently against a tty than against a
// plain pipe, so a pipe-backed test would not exercise the same prompt/
// history code path a user's actual session hits.
func TestREPLDispatchOverRealTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	oldIn, oldOut := os.Stdin, os.Stdout
	os.Stdin, os.Stdout = tty, tty
	defer func() { os.Stdin, os.Stdout = oldIn, oldOut }()

	done := make(chan error, 1)
	go func() { done <- runREPL(replCmd, nil) }()

	reader := bufio.NewReader(ptmx)
	readUntilPrompt(t, reader)

	_, err = ptmx.WriteString("help\r")
	require.NoError(t, err)
	readUntilPrompt(t, reader)

	_, err = ptmx.WriteString("quit\r")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runREPL did not return after quit")
	}
}

func readUntilPrompt(t *testing.T, r *bufio.Reader) {
	t.Helper()
	var sb strings.Builder
	deadline := time.After(5 * time.Second)
	lineCh := make(chan byte)
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(lineCh)
				return
			}
			lineCh <- b
		}
	}()
	for {
		select {
		case b, ok := <-lineCh:
			if !ok {
				return
			}
			sb.WriteByte(b)
			if strings.HasSuffix(sb.String(), "ehwalk> ") {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for prompt, got: %q", sb.String())
		}
	}
}
