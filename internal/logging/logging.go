// Package logging sets up structured logging: slog with fan-out and session
// context for the core, and a zerolog adapter for the event dispatcher.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultName prefixes log file names.
const DefaultName = "rssc"

// LogFilePath builds "<logsDir>/<name>.<YYYYMMDD_HHMMSS>.log".
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
