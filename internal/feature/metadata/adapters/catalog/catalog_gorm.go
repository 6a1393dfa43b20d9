// Package catalog は運用者が登録した動画メタデータをgormで永続化します。
package catalog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

type catalogGorm struct {
	db *gorm.DB
}

var _ usecase.CatalogRepository = (*catalogGorm)(nil)

func NewCatalogRepository(db *gorm.DB) *catalogGorm {
	return &catalogGorm{db: db}
}

type VideoModel struct {
	ID              uint   `gorm:"primaryKey"`
	Ref             string `gorm:"size:512;not null;uniqueIndex"`
	Title           string `gorm:"size:512;not null;default:''"`
	Channel         string `gorm:"size:256;not null;default:''"`
	ViewCount       int64  `gorm:"not null;default:0"`
	DurationSeconds int64  `gorm:"not null;default:0"`
	UpdatedAt       time.Time
}

func (VideoModel) TableName() string {
	return "video_catalog"
}

func (r *catalogGorm) Find(ctx context.Context, key string) (scanentity.VideoMetadata, error) {
	var m VideoModel
	err := r.db.WithContext(ctx).Where("ref = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return scanentity.VideoMetadata{}, domain.ErrNotFound
	}
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}
	return scanentity.VideoMetadata{
		Title:           m.Title,
		Channel:         m.Channel,
		ViewCount:       m.ViewCount,
		DurationSeconds: m.DurationSeconds,
	}, nil
}

func (r *catalogGorm) Upsert(ctx context.Context, key string, meta scanentity.VideoMetadata) error {
	m := VideoModel{
		Ref:             key,
		Title:           meta.Title,
		Channel:         meta.Channel,
		ViewCount:       meta.ViewCount,
		DurationSeconds: meta.DurationSeconds,
		UpdatedAt:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "channel", "view_count", "duration_seconds", "updated_at"}),
	}).Create(&m).Error
}
