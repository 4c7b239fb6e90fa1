// Package debug provides conditional debug logging for itv.
//
// Debug logging is enabled by setting the ITV_DEBUG environment variable:
//
//	ITV_DEBUG=1 itv --print ./src
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions return immediately.
//
// Usage:
//
//	import "github.com/vanderheijden86/indextree/pkg/debug"
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    debug.Log("processing %d items", count)
//	}
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

const prefix = "[ITV_DEBUG] "

var (
	// enabled is true when ITV_DEBUG env var is set
	enabled bool
	// logger writes to stderr with the [ITV_DEBUG] prefix
	logger *log.Logger
)

func init() {
	if os.Getenv("ITV_DEBUG") != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output (tests capture it in a buffer).
func SetOutput(w io.Writer) {
	if logger == nil {
		logger = log.New(w, prefix, log.Ltime|log.Lmicroseconds)
		return
	}
	logger.SetOutput(w)
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing.
//
//	defer debug.LogEnterExit("refilter")()
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Assert logs a message and panics if the condition is false.
// Only active when debug is enabled.
func Assert(cond bool, msg string) {
	if !enabled {
		return
	}
	if !cond {
		logger.Printf("ASSERTION FAILED: %s", msg)
		panic(fmt.Sprintf("debug assertion failed: %s", msg))
	}
}
