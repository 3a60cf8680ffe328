package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ── Logrus sink ────────────────────────────────────────────
// Console shows INFO and above (operator view), pipeline.log
// captures DEBUG and above (forensic detail), errors.log captures
// ERROR and above (on-call triage). Files rotate via lumberjack.

// Options configures the logrus-backed Sink.
type Options struct {
	Level      string // minimum console level: debug, info, warning, error
	Format     string // "text" | "json"
	Dir        string // log directory; empty disables file output
	MaxSizeMB  int    // per-file size before rotation
	MaxBackups int    // rotated files to keep
}

// LogrusSink adapts a logrus.Logger to the Sink interface.
type LogrusSink struct {
	logger  *logrus.Logger
	closers []io.Closer
}

// NewLogrusSink builds the console logger plus the two rotating
// file outputs. Returns an error only when the log directory
// cannot be created.
func NewLogrusSink(opts Options) (*LogrusSink, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(normalizeLevel(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(logrus.DebugLevel) // hooks see everything; console filters

	timestampFormat := "2006-01-02 15:04:05.000"
	var formatter logrus.Formatter
	if strings.EqualFold(opts.Format, "json") {
		formatter = &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	} else {
		formatter = &logrus.TextFormatter{TimestampFormat: timestampFormat, FullTimestamp: true}
	}
	logger.SetFormatter(formatter)

	sink := &LogrusSink{logger: logger}

	hooks := []logrus.Hook{&consoleFilterHook{min: level}}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, err
		}
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 5
		}
		backups := opts.MaxBackups
		if backups <= 0 {
			backups = 3
		}
		full := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "pipeline.log"),
			MaxSize:    maxSize,
			MaxBackups: backups,
		}
		errOnly := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "errors.log"),
			MaxSize:    maxSize,
			MaxBackups: backups,
		}
		hooks = append(hooks, &fileHook{
			formatter: formatter,
			full:      full,
			errOnly:   errOnly,
		})
		sink.closers = append(sink.closers, full, errOnly)
	}
	// Console output goes through the filter hook; the base writer
	// is replaced so entries below the console level are not printed twice.
	logger.SetOutput(io.Discard)
	for _, h := range hooks {
		logger.AddHook(h)
	}

	return sink, nil
}

// Close flushes and closes the rotating file outputs.
func (s *LogrusSink) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *LogrusSink) Emit(sev Severity, msg string, fields Fields) {
	entry := s.logger.WithFields(logrus.Fields(fields))
	switch sev {
	case Debug:
		entry.Debug(msg)
	case Info:
		entry.Info(msg)
	case Warning:
		entry.Warn(msg)
	case Error:
		entry.Error(msg)
	case Critical:
		// Log at fatal level without the os.Exit of Entry.Fatal.
		entry.Log(logrus.FatalLevel, msg)
	default:
		entry.Info(msg)
	}
}

func normalizeLevel(level string) string {
	if strings.EqualFold(level, "warning") {
		return "warn"
	}
	if level == "" {
		return "info"
	}
	return level
}

// ── Hooks ──────────────────────────────────────────────────

// consoleFilterHook prints entries at or above min to stdout.
type consoleFilterHook struct {
	min logrus.Level
}

func (h *consoleFilterHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleFilterHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.min { // logrus levels grow toward debug
		return nil
	}
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(line)
	return err
}

// fileHook writes every entry to the full log and ERROR+ entries
// to the error-only log.
type fileHook struct {
	formatter logrus.Formatter
	full      io.Writer
	errOnly   io.Writer
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	if _, err := h.full.Write(line); err != nil {
		return err
	}
	if entry.Level <= logrus.ErrorLevel {
		if _, err := h.errOnly.Write(line); err != nil {
			return err
		}
	}
	return nil
}
