package log

import "context"

// NullLogger bỏ qua mọi log, dùng trong unit test
type NullLogger struct{}

func NewNullLogger() (*NullLogger, error) {
	return &NullLogger{}, nil
}

func (l *NullLogger) Info(ctx context.Context, format string, args ...interface{})      {}
func (l *NullLogger) Alert(ctx context.Context, format string, args ...interface{})     {}
func (l *NullLogger) Error(ctx context.Context, format string, args ...interface{})     {}
func (l *NullLogger) Warn(ctx context.Context, format string, args ...interface{})      {}
func (l *NullLogger) Debug(ctx context.Context, format string, args ...interface{})     {}
func (l *NullLogger) Notice(ctx context.Context, format string, args ...interface{})    {}
func (l *NullLogger) Critical(ctx context.Context, format string, args ...interface{})  {}
func (l *NullLogger) Emergency(ctx context.Context, format string, args ...interface{}) {}
