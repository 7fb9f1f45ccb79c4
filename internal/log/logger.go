// Package log is the process-wide leveled logger. Messages carry a
// "Component: " prefix by convention, e.g. "Pipeline: Attached ...".
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	name := strings.ToUpper(strings.TrimSpace(levelStr))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

var (
	currentLevel atomic.Uint32
	logger       atomic.Pointer[stdlog.Logger]
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logger.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Enabled reports whether messages at level are written. Hot paths use it to
// skip building arguments for suppressed messages.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// output writes one line. INFO and WARN get an extra space so messages line
// up with DEBUG and ERROR.
func output(level LogLevel, msg string) {
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Load().Printf("[%s]%s%s", level, pad, msg)
}

func logf(level LogLevel, format string, v []any) {
	if Enabled(level) {
		output(level, fmt.Sprintf(format, v...))
	}
}

func Debugf(format string, v ...any) { logf(LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(LevelError, format, v) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	output(LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func logln(level LogLevel, v []any) {
	if Enabled(level) {
		output(level, fmt.Sprint(v...))
	}
}

func Debug(v ...any) { logln(LevelDebug, v) }
func Info(v ...any)  { logln(LevelInfo, v) }
func Warn(v ...any)  { logln(LevelWarn, v) }
func Error(v ...any) { logln(LevelError, v) }

// Fatal logs regardless of level and exits with status 1.
func Fatal(v ...any) {
	output(LevelFatal, fmt.Sprint(v...))
	os.Exit(1)
}
