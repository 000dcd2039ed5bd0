package logging

// NilLogger discards everything. It is the default when --debug is off.
type NilLogger struct{}

// NewNilLogger creates a no-op logger.
func NewNilLogger() *NilLogger {
	return &NilLogger{}
}

// Log does nothing.
func (l *NilLogger) Log(format string, args ...interface{}) {}

// IsEnabled always returns false.
func (l *NilLogger) IsEnabled() bool {
	return false
}

// Close does nothing.
func (l *NilLogger) Close() error {
	return nil
}

var _ Logger = (*NilLogger)(nil)
