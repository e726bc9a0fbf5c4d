// Package logging builds the process logger. Entries go to a rotating error
// log file, and to stderr as well in debug mode.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "fetch_error.log"

type Options struct {
	Dir   string
	Level string
	Debug bool
}

// New creates the logger and returns the file writer so callers can close it on exit.
func New(opts Options) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, FileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.WarnLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, err
		}
		level = parsed
	}

	var writer io.Writer = fileWriter
	if opts.Debug {
		level = log.DebugLevel
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	logger := log.NewWithOptions(writer, log.Options{
		ReportCaller:    opts.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "fitsync",
	})

	return logger, fileWriter, nil
}
