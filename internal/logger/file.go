package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	fileDateLayout  = "2006-01-02"
	fileStampLayout = "2006-01-02 Mon 15:04:05"
)

// FileSink appends log lines to <dir>/<YYYY-MM-DD>.log and switches files
// when the date changes.
type FileSink struct {
	mu   sync.Mutex
	dir  string
	date string
	file *os.File
	now  func() time.Time
}

// NewFileSink creates dir if needed. Files are opened lazily on first write.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, now: time.Now}, nil
}

// Write appends "\n[<date day time>] : msg" to the file for ts's date.
func (s *FileSink) Write(ts time.Time, msg string) error {
	return s.append(ts, fmt.Sprintf("\n[%s] : %s", ts.Format(fileStampLayout), msg))
}

// Dump appends "\n{LABEL} : value" to today's file.
func (s *FileSink) Dump(label string, value any) error {
	return s.append(s.now(), fmt.Sprintf("\n{%s} : %+v", strings.ToUpper(label), value))
}

func (s *FileSink) append(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := ts.Format(fileDateLayout)
	if s.file == nil || date != s.date {
		if s.file != nil {
			_ = s.file.Close()
			s.file = nil
		}
		f, err := os.OpenFile(filepath.Join(s.dir, date+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
		s.date = date
	}

	_, err := s.file.WriteString(line)
	return err
}

// Close closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

type sinkWriter struct {
	sink *FileSink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if err := w.sink.Write(w.sink.now(), line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewFileHandler returns a slog.Handler that writes text records to sink.
// The sink stamps each line, so the record time is dropped.
func NewFileHandler(sink *FileSink, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(sinkWriter{sink: sink}, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}
