// Package agents keeps non-interactive itv runs free of terminal probes.
package agents

import (
	"os"
	"strings"
)

// init runs before Bubble Tea acquires the terminal (and before any TUI starts).
//
// Lipgloss/Termenv background detection can emit OSC/DSR control sequences
// to stdout. Those are harmless in a real terminal but corrupt --json and
// --print output captured by another program, so such invocations set CI=1
// early; Termenv skips TTY probing when CI is set.
func init() {
	if os.Getenv("CI") != "" {
		return
	}

	if !shouldSuppressTTYQueries(os.Args, os.Getenv("ITV_ROBOT") == "1", os.Getenv("ITV_TEST_MODE") != "") {
		return
	}

	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}

	for _, arg := range args {
		if strings.HasPrefix(arg, "--export-md") {
			return true
		}
		switch arg {
		case "--json", "--print", "--init", "--version", "--help", "-h":
			return true
		}
	}

	return false
}
