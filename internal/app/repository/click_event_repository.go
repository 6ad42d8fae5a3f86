package repository

import (
	"context"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
	"gorm.io/gorm"
)

// ClickEventRepository is the Postgres click warehouse fed by the JetStream
// mirror. The append-only log files stay the canonical funnel record; this
// store exists for ad-hoc querying.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
	CountByType(ctx context.Context, eventType model.EventType, since time.Time) (int64, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *clickEventRepository) CountByType(ctx context.Context, eventType model.EventType, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).
		Where("type = ? AND timestamp >= ?", eventType, since).
		Count(&count).Error
	return count, err
}
