package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends timestamped lines to a file. Writes are handed to a
// background goroutine through a buffered channel so logging never blocks
// a git subprocess in flight; when the buffer is full the line is dropped.
type FileLogger struct {
	lines  chan string
	file   *os.File
	waiter sync.WaitGroup
	mu     sync.Mutex // guards file during Close
}

// NewFileLogger opens (or creates) the log file at path, creating parent
// directories as needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l := &FileLogger{
		lines: make(chan string, 128),
		file:  f,
	}
	l.waiter.Add(1)
	go l.writer()
	return l, nil
}

func (l *FileLogger) writer() {
	defer l.waiter.Done()
	for line := range l.lines {
		l.mu.Lock()
		if l.file != nil {
			_, _ = l.file.WriteString(line)
		}
		l.mu.Unlock()
	}
}

// Log formats the message, stamps it, and queues it for writing.
func (l *FileLogger) Log(format string, args ...interface{}) {
	stamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	line := fmt.Sprintf("[%s] %s\n", stamp, fmt.Sprintf(format, args...))

	select {
	case l.lines <- line:
	default:
		// Buffer full; drop rather than stall the pipeline.
	}
}

// IsEnabled returns true for FileLogger.
func (l *FileLogger) IsEnabled() bool {
	return true
}

// Close drains pending lines and closes the file.
func (l *FileLogger) Close() error {
	close(l.lines)
	l.waiter.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

var _ Logger = (*FileLogger)(nil)
