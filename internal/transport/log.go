package transport

import (
	"context"
	"log/slog"
)

// LogEmailSender is the development email transport: it records the rendered
// message instead of delivering it.
type LogEmailSender struct {
	Logger *slog.Logger
	From   string
}

func (s *LogEmailSender) SendEmail(ctx context.Context, config, data map[string]any) error {
	s.logger().InfoContext(ctx, "email dispatched",
		"from", s.From,
		"to", ConfigString(config, "to", data),
		"template", ConfigString(config, "template", data),
		"subject", ConfigString(config, "subject", data),
	)
	return nil
}

func (s *LogEmailSender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// LogSMSSender is the development SMS transport.
type LogSMSSender struct {
	Logger *slog.Logger
	From   string
}

func (s *LogSMSSender) SendSMS(ctx context.Context, config, data map[string]any) error {
	s.logger().InfoContext(ctx, "sms dispatched",
		"from", s.From,
		"to", ConfigString(config, "to", data),
		"message", ConfigString(config, "message", data),
	)
	return nil
}

func (s *LogSMSSender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// LogRecordWriter records would-be entity mutations. The surrounding CRUD
// modules own the real tables; wiring them in replaces this writer.
type LogRecordWriter struct {
	Logger *slog.Logger
}

func (w *LogRecordWriter) UpdateRecord(ctx context.Context, config, data map[string]any) error {
	w.logger().InfoContext(ctx, "record update dispatched",
		"entity", ConfigString(config, "entity", data),
		"record_id", ConfigString(config, "record_id", data),
	)
	return nil
}

func (w *LogRecordWriter) CreateRecord(ctx context.Context, config, data map[string]any) error {
	w.logger().InfoContext(ctx, "record create dispatched",
		"entity", ConfigString(config, "entity", data),
	)
	return nil
}

func (w *LogRecordWriter) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
