package channel

import (
	"context"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// LogPush records push notifications in the log instead of sending them
type LogPush struct {
	logger *zap.Logger
}

// NewLogPush creates a new LogPush
func NewLogPush(logger *zap.Logger) *LogPush {
	return &LogPush{logger: logger}
}

// Send logs the notification
func (l *LogPush) Send(ctx context.Context, userID, title, body string, priority model.Priority, data map[string]string) error {
	l.logger.Info("push notification",
		zap.String("user_id", userID),
		zap.String("title", title),
		zap.String("body", body),
		zap.String("priority", string(priority)),
		zap.Any("data", data),
	)
	return nil
}

// LogEmail records emails in the log instead of sending them
type LogEmail struct {
	logger *zap.Logger
}

// NewLogEmail creates a new LogEmail
func NewLogEmail(logger *zap.Logger) *LogEmail {
	return &LogEmail{logger: logger}
}

// Send logs the email subject. Addresses are not logged.
func (l *LogEmail) Send(ctx context.Context, address, subject, html string) error {
	l.logger.Info("email notification", zap.String("subject", subject), zap.Int("body_bytes", len(html)))
	return nil
}

// LogSMS records text messages in the log instead of sending them
type LogSMS struct {
	logger *zap.Logger
}

// NewLogSMS creates a new LogSMS
func NewLogSMS(logger *zap.Logger) *LogSMS {
	return &LogSMS{logger: logger}
}

// Send logs the message. Phone numbers are not logged.
func (l *LogSMS) Send(ctx context.Context, phone, text string) error {
	l.logger.Info("sms notification", zap.String("text", text))
	return nil
}
