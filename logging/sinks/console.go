package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"automated-kingdom/server/logging"
)

// ConsoleSink renders events as logrus text lines.
type ConsoleSink struct {
	logger *logrus.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	logger := logrus.New()
	if w != nil {
		logger.SetOutput(w)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:      cfg.UseColor,
		DisableColors:    !cfg.UseColor,
		FullTimestamp:    true,
		DisableSorting:   false,
		QuoteEmptyFields: true,
	})
	logger.SetLevel(logrus.DebugLevel)
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	fields := logrus.Fields{
		"tick":  event.Tick,
		"actor": formatEntity(event.Actor),
	}
	if event.SessionID != "" {
		fields["session"] = event.SessionID
	}
	if event.Category != "" {
		fields["category"] = event.Category
	}
	if len(event.Targets) > 0 {
		fields["targets"] = formatTargets(event.Targets)
	}
	if event.Payload != nil {
		fields["payload"] = formatPayload(event.Payload)
	}
	for k, v := range event.Extra {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}
	entry := s.logger.WithFields(fields)
	if !event.Time.IsZero() {
		entry = entry.WithTime(event.Time)
	}
	entry.Log(levelFor(event.Severity), string(event.Type))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func levelFor(sev logging.Severity) logrus.Level {
	switch sev {
	case logging.SeverityDebug:
		return logrus.DebugLevel
	case logging.SeverityWarn:
		return logrus.WarnLevel
	case logging.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}

func formatPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
