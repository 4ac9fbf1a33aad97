// Package log is the daemon's logging layer: leveled, timestamped lines
// on stderr with key=value pairs appended. Components attribute their
// output with a Tag, so interleaved driver, canvas and web lines stay
// distinguishable on a serial console.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *stdlog.Logger
	loggerOnce sync.Once
	minLevel   = LevelInfo
)

func initLogger() {
	loggerOnce.Do(func() {
		logger = stdlog.New(os.Stderr, "", stdlog.LstdFlags|stdlog.Lmicroseconds)
	})
}

// SetLevel sets the minimum emitted level. Calls below the threshold are
// dropped before any formatting happens.
func SetLevel(l Level) {
	initLogger()
	minLevel = l
}

// Tag names the component a line originates from. It is emitted as the
// first key-value pair on every line logged through it.
type Tag string

func (t Tag) Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, append([]any{"component", string(t)}, kv...)...)
}

func (t Tag) Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, append([]any{"component", string(t)}, kv...)...)
}

func (t Tag) Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, append([]any{"component", string(t), "err", err}, kv...)...)
}

// Debug, Info and Error are the untagged forms, for call sites where the
// component is obvious from the message (flag parsing, startup, shutdown).
func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, append([]any{"err", err}, kv...)...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()
	if !enabled(level) {
		return
	}

	// 2025-01-01T00:00:00Z [LEVEL] msg key=value ...
	line := time.Now().Format(time.RFC3339Nano) + " [" + string(level) + "] " + msg
	if len(kv) > 0 {
		line += formatKVs(kv...)
	}

	logger.Println(line)
}

func enabled(level Level) bool {
	switch minLevel {
	case LevelDebug:
		return true
	case LevelInfo:
		return level == LevelInfo || level == LevelError
	case LevelError:
		return level == LevelError
	default:
		return true
	}
}

// formatKVs renders pairs as " key=value". A trailing odd argument and
// non-string keys are skipped rather than corrupting the line.
func formatKVs(kv ...any) string {
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out += " " + key + "=" + fmt.Sprint(kv[i+1])
	}
	return out
}
