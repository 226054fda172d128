package logging

import (
	"fmt"
	"io"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
)

func (level Level) String() string {
	switch level {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

type LoggerEntry struct {
	Level     Level
	Messages  []string
	Timestamp time.Time
}

type Logger struct {
	Logs     chan LoggerEntry
	prefix   string
	minLevel Level
}

func CreateLogger(prefix string, logs chan LoggerEntry) *Logger {
	return &Logger{
		Logs:     logs,
		prefix:   prefix,
		minLevel: Info,
	}
}

// WithPrefix returns a logger writing to the same channel with another prefix
func (logg *Logger) WithPrefix(prefix string) *Logger {
	if logg == nil {
		return nil
	}
	return &Logger{Logs: logg.Logs, prefix: prefix, minLevel: logg.minLevel}
}

func (logg *Logger) SetLevel(level Level) {
	logg.minLevel = level
}

func (logg *Logger) Log(message string) {
	logg.emit(Info, []string{message})
}

func (logg *Logger) LogMultiple(messages []string) {
	logg.emit(Info, messages)
}

func (logg *Logger) Debugf(format string, args ...any) {
	logg.emit(Debug, []string{fmt.Sprintf(format, args...)})
}

func (logg *Logger) Infof(format string, args ...any) {
	logg.emit(Info, []string{fmt.Sprintf(format, args...)})
}

func (logg *Logger) Warnf(format string, args ...any) {
	logg.emit(Warn, []string{fmt.Sprintf(format, args...)})
}

func (logg *Logger) emit(level Level, messages []string) {
	if logg == nil || logg.Logs == nil || level < logg.minLevel {
		return
	}

	prefixed := make([]string, len(messages))
	for idx, message := range messages {
		prefixed[idx] = fmt.Sprintf("%s %s", logg.prefix, message)
	}

	entry := LoggerEntry{
		Level:     level,
		Messages:  prefixed,
		Timestamp: time.Now(),
	}

	// nodes never block on logging, entries are dropped when nobody drains the channel
	select {
	case logg.Logs <- entry:
	default:
	}
}

// Drain writes entries to writer until quit is closed
func Drain(logs chan LoggerEntry, writer io.Writer, quit <-chan struct{}) {
	start := time.Now()
	for {
		select {
		case entry := <-logs:
			for _, message := range entry.Messages {
				fmt.Fprintf(writer, "%s %-5s %s\n", FormatTimestamp(start, entry.Timestamp), entry.Level, message)
			}
		case <-quit:
			return
		}
	}
}

func FormatTimestamp(start time.Time, end time.Time) string {
	diff := end.Sub(start)
	return fmt.Sprintf("[%02d:%02d:%04d]", int(diff.Minutes()), int(diff.Seconds())%60, diff.Milliseconds()%1000)
}
