package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// LogFileName is the name of the log file inside the cache directory
const LogFileName = "chfctl.log"

func init() {
	// Everything goes through the instance built by Init
	log.SetLevel(log.FatalLevel)
}

var (
	// Log is the process-wide logger handed to services by the cmd package
	Log = Discard()

	logFile *os.File
)

// Init opens the log file under cacheDir and builds Log.
// Non-verbose runs log to the file only; verbose runs mirror to stderr.
func Init(cacheDir string, verbose bool) error {
	var output io.Writer = os.Stderr

	if err := os.MkdirAll(cacheDir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(cacheDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			logFile = f
			output = f
			if verbose {
				output = io.MultiWriter(f, os.Stderr)
			}
		}
	}

	Log = New(output, verbose)
	if logFile == nil && !verbose {
		// stderr fallback, keep it quiet
		Log.SetLevel(log.WarnLevel)
	}
	return nil
}

// New builds a timestamped logger writing to w
func New(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// Close closes the log file
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Path returns the log file location for a cache directory
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, LogFileName)
}
