// SPDX-License-Identifier: MIT
package validate

import "strings"

// LogLevel is a level name understood by the hub logger.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogLevels lists the accepted levels from most to least verbose.
var LogLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

func (l LogLevel) IsValid() bool {
	for _, known := range LogLevels {
		if l == known {
			return true
		}
	}
	return false
}

func (l LogLevel) String() string {
	return string(l)
}

// ParseLogLevel normalises s and checks it against LogLevels.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", ErrInvalidLogLevel
	}
	return level, nil
}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = &Error{
	Field:   "logLevel",
	Message: "invalid log level (must be: trace, debug, info, warn, error)",
}

// LogLevel validates a log level name.
func (v *Validator) LogLevel(field, value string) {
	if _, err := ParseLogLevel(value); err != nil {
		v.AddError(field, ErrInvalidLogLevel.Message, value)
	}
}
