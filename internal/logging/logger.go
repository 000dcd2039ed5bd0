package logging

// Logger is the logging contract shared by every component of the apply
// pipeline. Components never print; diagnostics flow through here so the
// CLI decides whether they land in a file or nowhere.
type Logger interface {
	// Log formats and writes one log line.
	Log(format string, args ...interface{})
	// IsEnabled reports whether output is actually being recorded.
	IsEnabled() bool
	// Close releases any resources held by the logger.
	Close() error
}
