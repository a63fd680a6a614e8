package core

import "fmt"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active.
	// Disabled by default: formatting on the fire path costs microseconds.
	debugEnabled bool = false
)

// SetDebugWriter sets the platform-specific debug output function.
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// debugf formats and emits a debug message when enabled. Never called from
// inside the latency-critical window; the hardware machines run alone there.
func debugf(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	debugPrintln(fmt.Sprintf(format, args...))
}
