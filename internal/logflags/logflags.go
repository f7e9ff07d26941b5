// Package logflags configures ehwalk's structured logging, grounded on
// delve's pkg/logflags: a small set of named subsystems that can be
// switched on independently via a comma-separated list (here the
// EHWALK_LOG environment variable, or the --log CLI flag), each
// backed by its own github.com/sirupsen/logrus.Entry so call sites can
// cheaply check IsEnabled() before building an expensive log line.
package logflags

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const (
	unwindFlag      = "unwind"
	stackFlag       = "stack"
	personalityFlag = "personality"
	locatorFlag     = "locator"
)

var (
	mu        sync.Mutex
	enabled   = map[string]bool{}
	baseLog   = logrus.New()
	configured bool
)

// Setup parses a comma-separated subsystem list (e.g. "unwind,stack")
// and configures the shared logrus logger. It is safe to call more than
// once; the last call wins. An empty spec disables all subsystems.
func Setup(spec string) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = map[string]bool{}
	for _, f := range strings.Split(spec, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		switch f {
		case unwindFlag, stackFlag, personalityFlag, locatorFlag:
			enabled[f] = true
		default:
			return fmt.Errorf("logflags: unknown log subsystem %q", f)
		}
	}

	if !configured {
		out := os.Stderr
		if isatty.IsTerminal(out.Fd()) {
			baseLog.SetOutput(colorable.NewColorable(out))
		} else {
			baseLog.SetOutput(out)
		}
		baseLog.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		configured = true
	}

	return nil
}

// FromEnv calls Setup with the EHWALK_LOG environment variable, the
// teacher-style env-var-first convenience delve's cmd/dlv wires up
// before flag parsing runs.
func FromEnv() error {
	return Setup(os.Getenv("EHWALK_LOG"))
}

func isEnabled(flag string) bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled[flag]
}

func entry(subsystem string) *logrus.Entry {
	return baseLog.WithField("layer", subsystem)
}

// Unwind reports whether the "unwind" subsystem log (CFA/register-rule
// execution) is enabled.
func Unwind() bool { return isEnabled(unwindFlag) }

// UnwindLogger returns the logger for the "unwind" subsystem.
func UnwindLogger() *logrus.Entry { return entry(unwindFlag) }

// Stack reports whether the "stack" subsystem log (frame iteration) is
// enabled.
func Stack() bool { return isEnabled(stackFlag) }

// StackLogger returns the logger for the "stack" subsystem.
func StackLogger() *logrus.Entry { return entry(stackFlag) }

// Personality reports whether the "personality" subsystem log (ABI
// driver phase transitions) is enabled.
func Personality() bool { return isEnabled(personalityFlag) }

// PersonalityLogger returns the logger for the "personality" subsystem.
func PersonalityLogger() *logrus.Entry { return entry(personalityFlag) }

// Locator reports whether the "locator" subsystem log (CFI discovery)
// is enabled.
func Locator() bool { return isEnabled(locatorFlag) }

// LocatorLogger returns the logger for the "locator" subsystem.
func LocatorLogger() *logrus.Entry { return entry(locatorFlag) }
