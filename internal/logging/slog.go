package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// SlogManager owns the process-wide slog logger.
type SlogManager struct {
	logger *slog.Logger
	gelf   *gelf.Writer
}

// Outputs selects where records go. With no file, records go to stdout.
type Outputs struct {
	File io.Writer
	// GraylogAddress enables GELF shipping over UDP when non-empty.
	GraylogAddress string
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel converts a string log level to slog.Level. Unknown levels are
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup builds the handler fan-out. A GELF dial failure is returned but the
// console/file handlers are still installed.
func (m *SlogManager) Setup(level string, out Outputs) error {
	lvl := ParseLevel(level)
	opts := handlerOptions(lvl)

	var handlers []slog.Handler
	if out.File != nil {
		handlers = append(handlers, slog.NewTextHandler(out.File, opts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
	}

	var gelfErr error
	if m.gelf != nil {
		_ = m.gelf.Close()
		m.gelf = nil
	}
	if out.GraylogAddress != "" {
		w, err := gelf.NewWriter(out.GraylogAddress)
		if err != nil {
			gelfErr = fmt.Errorf("connect graylog %s: %w", out.GraylogAddress, err)
		} else {
			m.gelf = w
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		}
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", lvl.String(), "graylog", m.gelf != nil)
	return gelfErr
}

// Logger returns the configured slog.Logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close releases the GELF connection.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	return err
}
