package repository

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
	"go.uber.org/zap"
)

// Guard against a corrupt or runaway feed export; the bot normally writes a
// few hundred KB.
const maxFeedBytes = 32 << 20

// FeedRepository provides read access to the current course feed snapshot.
// Feed unavailability degrades the funnel, it never fails it, so LoadFeed
// returns an empty slice on any problem.
type FeedRepository interface {
	LoadFeed(ctx context.Context) []model.CourseRecord
	ModTime() time.Time
}

// feedDocument is the bot's export format: a top-level courses array.
type feedDocument struct {
	Courses []model.CourseRecord `json:"courses"`
}

type fileFeedRepository struct {
	path   string
	logger *zap.Logger
}

// NewFileFeedRepository returns a FeedRepository reading the JSON feed at path.
func NewFileFeedRepository(path string, logger *zap.Logger) FeedRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileFeedRepository{path: path, logger: logger}
}

func (r *fileFeedRepository) LoadFeed(_ context.Context) []model.CourseRecord {
	f, err := os.Open(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("failed to open course feed", zap.String("path", r.path), zap.Error(err))
		}
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFeedBytes))
	if err != nil {
		r.logger.Warn("failed to read course feed", zap.String("path", r.path), zap.Error(err))
		return nil
	}

	var doc feedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.Warn("course feed is not valid JSON", zap.String("path", r.path), zap.Error(err))
		return nil
	}

	return doc.Courses
}

// ModTime reports when the feed file was last written, or the zero time when
// the file is missing.
func (r *fileFeedRepository) ModTime() time.Time {
	info, err := os.Stat(r.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
