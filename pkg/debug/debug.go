// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-avatar/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Detection controls whether per-detection traces are shown (boxes, scores, misses).
// Use --debug-detection to enable these very verbose logs
var Detection bool

// Log emits a debug record only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// DetectLog emits a record only if detection tracing is enabled.
// It logs at info so traces show up without lowering the global level.
func DetectLog(msg string, args ...any) {
	if Detection {
		log.Info(msg, args...)
	}
}
