package main

import (
	"log/slog"

	"github.com/jblukach/domains/pkg/status"
)

// statusLogHandler returns a status.Handler that logs updates using slog
func statusLogHandler() status.Handler {
	return func(update status.Update) {
		attrs := []any{
			"message", update.Message,
		}

		if update.Stack != "" {
			attrs = append(attrs, "stack", update.Stack)
		}
		if update.Resource != "" {
			attrs = append(attrs, "resource", update.Resource)
		}
		if update.Action != "" {
			attrs = append(attrs, "action", update.Action)
		}
		for key, value := range update.Metadata {
			attrs = append(attrs, key, value)
		}

		switch update.Level {
		case status.LevelProgress:
			slog.Debug("Progress", attrs...)
		case status.LevelSuccess:
			slog.Info("Success", attrs...)
		case status.LevelWarning:
			slog.Warn("Warning", attrs...)
		case status.LevelError:
			slog.Error("Error", attrs...)
		default:
			slog.Info("Status", attrs...)
		}
	}
}
