package audit

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink writes events as structured log lines; high and critical events log at Warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("security")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	level := zapcore.InfoLevel
	if event.Severity.Rank() >= SeverityHigh.Rank() {
		level = zapcore.WarnLevel
	}
	ce := s.logger.Check(level, event.Type)
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("severity", string(event.Severity)),
		zap.Bool("success", event.Success),
		zap.Time("ts", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if event.Details != "" {
		fields = append(fields, zap.String("details", event.Details))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	ce.Write(fields...)
}
