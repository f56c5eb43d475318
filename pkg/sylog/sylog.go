// Package sylog implements nanolayer's process-wide logger. Output format and
// level semantics follow the pattern used across the apptainer/sylog code:
// a single package-level level, colorized by severity, writing to stderr.
package sylog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type Level int

const (
	ErrorLevel Level = iota
	WarnLevel
	InfoLevel
	VerboseLevel
	DebugLevel
)

var levelColors = map[Level]*color.Color{
	ErrorLevel: color.New(color.FgRed, color.Bold),
	WarnLevel:  color.New(color.FgYellow),
}

var levelNames = map[Level]string{
	ErrorLevel:   "ERROR",
	WarnLevel:    "WARNING",
	InfoLevel:    "INFO",
	VerboseLevel: "VERBOSE",
	DebugLevel:   "DEBUG",
}

var (
	loggerLevel = InfoLevel
	logWriter   = io.Writer(os.Stderr)
)

func init() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		color.NoColor = true
	}
}

// SetLevel sets the process-wide verbosity. Called once at CLI startup from
// the --verbose/--quiet flags.
func SetLevel(l Level) {
	loggerLevel = l
}

// SetWriter redirects log output and returns the previous writer, so tests
// can capture output and restore it afterward.
func SetWriter(w io.Writer) io.Writer {
	old := logWriter
	if w != nil {
		logWriter = w
	}
	return old
}

func writef(msgLevel Level, format string, a ...interface{}) {
	if loggerLevel < msgLevel {
		return
	}
	message := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	prefix := fmt.Sprintf("%-8s", levelNames[msgLevel]+":")
	if c, ok := levelColors[msgLevel]; ok {
		prefix = c.Sprintf("%-8s", levelNames[msgLevel]+":")
	}
	fmt.Fprintf(logWriter, "%s %s\n", prefix, message)
}

// Fatalf logs at ERROR level and terminates the process with exit code 1.
// Core installer packages should return errors instead; this is reserved for
// the CLI's top-level error boundary.
func Fatalf(format string, a ...interface{}) {
	writef(ErrorLevel, format, a...)
	os.Exit(1)
}

// Errorf logs an ERROR level message without exiting.
func Errorf(format string, a ...interface{}) { writef(ErrorLevel, format, a...) }

// Warningf logs a WARNING level message.
func Warningf(format string, a ...interface{}) { writef(WarnLevel, format, a...) }

// Infof logs an INFO level message. Shown by default.
func Infof(format string, a ...interface{}) { writef(InfoLevel, format, a...) }

// Verbosef logs a VERBOSE level message, shown only with -v/--verbose.
func Verbosef(format string, a ...interface{}) { writef(VerboseLevel, format, a...) }

// Debugf logs a DEBUG level message, shown only with -d/--debug.
func Debugf(format string, a ...interface{}) { writef(DebugLevel, format, a...) }
