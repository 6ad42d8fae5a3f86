package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/quicktrends/couponfunnel/internal/app/model"
	"go.uber.org/zap"
)

// One write in a hundred also sweeps expired archives.
const cleanupChance = 100

// EventLogger records funnel occurrences. Implementations must tolerate
// concurrent callers and must never let a failed write reach the visitor.
type EventLogger interface {
	Log(ctx context.Context, event model.ClickEvent) error
}

// FileEventLogger appends one JSON line per event to a per-type log file,
// rotating, compressing, and expiring archives as they age.
type FileEventLogger struct {
	dir           string
	rotateBytes   int64
	retentionDays int
	clock         Clock
	logger        *zap.Logger
	mirror        *ClickPublisher

	// Serializes append and rotation so concurrent writers never interleave
	// partial lines or append into a file mid-rename.
	mu sync.Mutex
}

// FileEventLoggerDeps configures a FileEventLogger. Mirror is optional.
type FileEventLoggerDeps struct {
	Dir           string
	RotateBytes   int64
	RetentionDays int
	Clock         Clock
	Logger        *zap.Logger
	Mirror        *ClickPublisher
}

// NewFileEventLogger builds a logger writing under deps.Dir.
func NewFileEventLogger(deps FileEventLoggerDeps) *FileEventLogger {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rotateBytes := deps.RotateBytes
	if rotateBytes <= 0 {
		rotateBytes = 1024 * 1024
	}
	retentionDays := deps.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &FileEventLogger{
		dir:           deps.Dir,
		rotateBytes:   rotateBytes,
		retentionDays: retentionDays,
		clock:         clock,
		logger:        logger,
		mirror:        deps.Mirror,
	}
}

// Log appends the event to its type's log file. The live file is rotated
// first when it was last written on an earlier day and has outgrown the
// size threshold, so after rotation the fresh file holds only this event.
func (l *FileEventLogger) Log(_ context.Context, event model.ClickEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	path := filepath.Join(l.dir, event.Type.LogFileName())

	l.mu.Lock()
	err = func() error {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}

		l.rotateIfNeeded(path)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append log line: %w", err)
		}
		return nil
	}()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if l.mirror != nil {
		if perr := l.mirror.Publish(event); perr != nil {
			l.logger.Warn("failed to mirror click event", zap.Error(perr))
		}
	}

	if rand.Intn(cleanupChance) == 0 {
		l.CleanupArchives()
	}
	return nil
}

// rotateIfNeeded archives the live file when it is both stale (last written
// on an earlier day) and over the size threshold. The archive is gzipped and
// the plain copy removed. Called with the append lock held.
func (l *FileEventLogger) rotateIfNeeded(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	today := l.clock.Now().Format("2006-01-02")
	fileDay := info.ModTime().Format("2006-01-02")
	if fileDay == today || info.Size() <= l.rotateBytes {
		return
	}

	archived := path + "." + fileDay
	if err := os.Rename(path, archived); err != nil {
		l.logger.Error("failed to rotate analytics log", zap.String("file", path), zap.Error(err))
		return
	}

	if err := compressFile(archived); err != nil {
		l.logger.Error("failed to compress rotated log", zap.String("file", archived), zap.Error(err))
		return
	}
	if err := os.Remove(archived); err != nil {
		l.logger.Warn("failed to remove uncompressed archive", zap.String("file", archived), zap.Error(err))
	}
}

// CleanupArchives deletes compressed archives older than the retention
// window. Normally triggered probabilistically from Log.
func (l *FileEventLogger) CleanupArchives() {
	archives, err := filepath.Glob(filepath.Join(l.dir, "*.gz"))
	if err != nil {
		return
	}

	cutoff := l.clock.Now().AddDate(0, 0, -l.retentionDays)
	for _, archive := range archives {
		info, err := os.Stat(archive)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(archive); err != nil {
				l.logger.Warn("failed to delete expired archive", zap.String("file", archive), zap.Error(err))
			}
		}
	}
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	return dst.Close()
}

// TruncateUserAgent trims raw user agent strings to the stored maximum.
func TruncateUserAgent(ua string) string {
	const maxLen = 200
	ua = strings.TrimSpace(ua)
	if len(ua) > maxLen {
		return ua[:maxLen]
	}
	return ua
}
