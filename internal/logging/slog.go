package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Sinks are the optional outputs besides the text log.
type Sinks struct {
	// Graylog receives every record as JSON.
	Graylog io.Writer
	// OTel receives every record through the otelslog bridge.
	OTel *sdklog.LoggerProvider
}

// SlogManager owns the process logger: console or file text output, plus
// optional Graylog and OTel sinks, with per-record session context.
type SlogManager struct {
	logger      *slog.Logger
	provider    ContextProvider
	logProvider *sdklog.LoggerProvider
	stdout      io.Writer
}

// NewSlogManager creates a manager that logs through slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{stdout: os.Stdout}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetContext installs a provider whose attributes are added to every record.
// It takes effect on the next Setup.
func (m *SlogManager) SetContext(p ContextProvider) {
	m.provider = p
}

// Setup builds the logger. Records go to file when given, otherwise to
// stdout, and to every configured sink.
func (m *SlogManager) Setup(file io.Writer, level string, sinks Sinks) {
	lvl := parseLevel(level)
	m.logProvider = sinks.OTel

	handlerOpts := &slog.HandlerOptions{
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

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(m.stdout, handlerOpts))
	}
	if sinks.Graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(sinks.Graylog, handlerOpts))
	}
	if sinks.OTel != nil {
		handlers = append(handlers, otelslog.NewHandler(DefaultName, otelslog.WithLoggerProvider(sinks.OTel)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.provider != nil {
		h = NewContextHandler(h, m.provider)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level, "graylog", sinks.Graylog != nil, "otel", sinks.OTel != nil)
}

// Flush forces pending OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// WriteLog writes one entry tagged with the component that produced it.
func (m *SlogManager) WriteLog(component, msg, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(msg, "component", component)
	case slog.LevelWarn:
		m.logger.Warn(msg, "component", component)
	case slog.LevelError:
		m.logger.Error(msg, "component", component)
	default:
		m.logger.Info(msg, "component", component)
	}
}
