package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Logger interface {
	Info(message string)
	Error(message string)
	Warn(message string)
	Debug(message string)
}

// ColorLogger writes timestamped lines with a colored level tag.
type ColorLogger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// New returns a logger writing to out. Debug lines are dropped unless verbose.
func New(out io.Writer, verbose bool) *ColorLogger {
	if out == nil {
		out = os.Stderr
	}
	return &ColorLogger{out: out, verbose: verbose}
}

// Discard returns a logger that drops everything.
func Discard() *ColorLogger {
	return New(io.Discard, false)
}

var (
	infoColor  = color.New(color.FgGreen).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
)

func (l *ColorLogger) log(level, message string, colorFunc func(...interface{}) string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s\n", timestamp, colorFunc(level), message)
}

func (l *ColorLogger) Info(message string) {
	l.log("INFO", message, infoColor)
}

func (l *ColorLogger) Error(message string) {
	l.log("ERROR", message, errorColor)
}

func (l *ColorLogger) Warn(message string) {
	l.log("WARN", message, warnColor)
}

func (l *ColorLogger) Debug(message string) {
	if !l.verbose {
		return
	}
	l.log("DEBUG", message, debugColor)
}
