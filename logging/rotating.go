package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const logFilePrefix = "fshconv-"

// RotatingLogger is an io.Writer over weekly log files. A week's file is
// continued as <prefix><week>_NN.log once it reaches maxFileSize.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize int64
	sequence    int

	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates the log directory and opens the current week's file.
func NewRotatingLogger(logDir string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	rl := &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		cleanupDone: make(chan struct{}),
	}

	rl.mu.Lock()
	err := rl.rotate(getWeekKey(time.Now()))
	rl.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return rl, nil
}

// StartCleanup removes expired log files every interval until Close.
func (rl *RotatingLogger) StartCleanup(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := rl.cleanupOldLogs(time.Now()); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				}
			}
		}
	}()
}

// getWeekKey returns the ISO week in YYYY-Www format
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rl *RotatingLogger) fileName(week string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s%s.log", logFilePrefix, week)
	}
	return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, seq)
}

// rotate opens the first file of week with room left (caller holds mu).
func (rl *RotatingLogger) rotate(week string) error {
	if rl.currentFile != nil {
		_ = rl.currentFile.Close()
		rl.currentFile = nil
	}

	seq := 0
	if week == rl.currentWeek {
		seq = rl.sequence + 1
	}

	for {
		path := filepath.Join(rl.logDir, rl.fileName(week, seq))
		info, err := os.Stat(path)
		if err != nil || rl.maxFileSize <= 0 || info.Size() < rl.maxFileSize {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", path, err)
			}
			rl.currentFile = file
			rl.currentWeek = week
			rl.sequence = seq
			rl.currentSize = 0
			if info != nil {
				rl.currentSize = info.Size()
			}
			return nil
		}
		seq++
	}
}

// Write appends p to the current file, rotating on a new week or when p
// would push the file past maxFileSize.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	full := rl.maxFileSize > 0 && rl.currentSize > 0 && rl.currentSize+int64(len(p)) > rl.maxFileSize
	if week != rl.currentWeek || full || rl.currentFile == nil {
		if err := rl.rotate(week); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize += int64(n)
	return n, err
}

// cleanupOldLogs deletes log files last modified before now-retention.
func (rl *RotatingLogger) cleanupOldLogs(now time.Time) (int, error) {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := now.Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		rl.mu.Lock()
		isCurrent := rl.currentFile != nil && filepath.Base(rl.currentFile.Name()) == name
		rl.mu.Unlock()
		if isCurrent {
			continue
		}

		if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// Close stops the cleanup goroutine and closes the current file.
func (rl *RotatingLogger) Close() error {
	if rl.cancel != nil {
		rl.cancel()
		<-rl.cleanupDone
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}
