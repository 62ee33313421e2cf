// Package debug provides global debug logging flags
package debug

import (
	"fmt"

	"github.com/teslashibe/go-handscroll/internal/log"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame gesture logs are shown (hand detected,
// raw Y, mapped progress). Very verbose: one line per processed frame.
var Frames bool

// Log writes a message only if debug mode is enabled
func Log(format string, args ...any) {
	if Enabled {
		log.Component("debug").Info(fmt.Sprintf(format, args...))
	}
}

// FrameLog writes a message only if frame debugging is enabled
func FrameLog(format string, args ...any) {
	if Frames {
		log.Component("frames").Info(fmt.Sprintf(format, args...))
	}
}
