// Package observability carries the engine's ambient logging and traffic
// counters, one instance per session rather than a process-wide singleton.
package observability

import "github.com/pterm/pterm"

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 2006 15:04:05"
}

// Logger prefixes every line with a session tag, so a process juggling
// several Engines can tell their log output apart.
type Logger struct {
	session string
}

// NewLogger returns a Logger tagging its output with session.
func NewLogger(session string) *Logger {
	return &Logger{session: session}
}

func (l *Logger) tag(format string) string {
	if l.session == "" {
		return format
	}
	return "[" + l.session + "] " + format
}

func (l *Logger) Debug(format string, args ...interface{}) {
	pterm.Debug.Printfln(l.tag(format), args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	pterm.Info.Printfln(l.tag(format), args...)
}

func (l *Logger) Success(format string, args ...interface{}) {
	pterm.Success.Printfln(l.tag(format), args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	pterm.Warning.Printfln(l.tag(format), args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	pterm.Error.Printfln(l.tag(format), args...)
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
	pterm.EnableDebugMessages()
}
