package telemetry

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"automated-kingdom/server/logging"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a logrus logger or entry to the Logger interface.
func WrapLogger(logger logrus.FieldLogger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger logrus.FieldLogger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Infof(format, args...)
}

// FieldLogger returns the wrapped logrus logger so callers can attach fields.
func (l *loggerAdapter) FieldLogger() logrus.FieldLogger {
	if l == nil {
		return nil
	}
	return l.logger
}

// NewLogrus builds the process logger. Unknown levels fall back to info.
func NewLogrus(out io.Writer, level string, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	if jsonFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics adapts the logging metrics registry into the Metrics interface.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return &metricsAdapter{metrics: metrics}
}

type metricsAdapter struct {
	metrics *logging.Metrics
}

func (m *metricsAdapter) Add(key string, delta uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryAdd(key, delta)
}

func (m *metricsAdapter) Store(key string, value uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryStore(key, value)
}
