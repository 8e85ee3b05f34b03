package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var session = false
var scan = false
var freeze = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	factory := loggerFactory
	if factory == nil {
		factory = newDefaultLogger
	}
	return factory(level, fields, logOut)
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

func newDefaultLogger(level logrus.Level, fields Fields, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := &logrus.Logger{
		Out:       out,
		Formatter: textFormatterInstance,
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
	return &logrusLogger{logger.WithFields(logrus.Fields(fields))}
}

// Session returns true if attach and detach events should be logged.
func Session() bool {
	return session
}

// SessionLogger returns a logger for process attach lifecycle events.
func SessionLogger() Logger {
	return makeFlaggableLogger(session, Fields{"layer": "session"})
}

// Scan returns true if memory scans should log per-region details.
func Scan() bool {
	return scan
}

// ScanLogger returns a logger for the scan engine.
func ScanLogger() Logger {
	return makeFlaggableLogger(scan, Fields{"layer": "scan"})
}

// Freeze returns true if freeze loops should log their progress.
func Freeze() bool {
	return freeze
}

// FreezeLogger returns a logger for freeze loops.
func FreezeLogger() Logger {
	return makeFlaggableLogger(freeze, Fields{"layer": "freeze"})
}

// Any returns true if any logging is enabled.
func Any() bool {
	return session || scan || freeze
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the logging flags based on the contents of logstr. If
// logDest is not empty logs will be redirected to the file or file
// descriptor it names.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "mscout-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "session"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go
		switch logcmd {
		case "session":
			session = true
		case "scan":
			scan = true
		case "freeze":
			freeze = true
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatterInstance is a singleton instance of textFormatter.
var textFormatterInstance = &textFormatter{}

// textFormatter is a formatter for logrus that prints each entry as a
// timestamp, the log level, sorted key=value fields and the message.
type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}
	b.WriteString(entry.Time.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		stringVal, ok := entry.Data[key].(string)
		if !ok {
			stringVal = fmt.Sprint(entry.Data[key])
		}
		if f.needsQuoting(stringVal) {
			fmt.Fprintf(b, "%q", stringVal)
		} else {
			b.WriteString(stringVal)
		}
		b.WriteByte(' ')
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *textFormatter) needsQuoting(text string) bool {
	for _, ch := range text {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '/' || ch == '@' || ch == '^' || ch == '+') {
			return true
		}
	}
	return false
}
