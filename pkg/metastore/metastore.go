// Package metastore persists per-video metadata for completed downloads
// in a local SQLite database.
package metastore

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// VideoRecord is one completed download, keyed by the platform video ID.
type VideoRecord struct {
	VideoID     string `gorm:"primaryKey"`
	URL         string
	Title       string
	Channel     string
	Duration    int
	UploadDate  string
	Subject     string
	GroupKey    string
	Topic       string `gorm:"index"`
	Subtopic    string `gorm:"index"`
	LocalPath   string
	CompletedAt time.Time
}

// Store is a SQLite-backed metadata store.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm connection and runs migrations.
func New(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&VideoRecord{})
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts the record or replaces an existing one with the same
// video ID.
func (s *Store) Upsert(ctx context.Context, rec *VideoRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

// Get returns the record for the given video ID, or (nil, nil) when no
// record exists.
func (s *Store) Get(ctx context.Context, videoID string) (*VideoRecord, error) {
	var rec VideoRecord
	err := s.db.WithContext(ctx).First(&rec, "video_id = ?", videoID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Count returns the total number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&VideoRecord{}).Count(&n).Error
	return n, err
}

// BySubtopic returns all records for the given topic and subtopic.
func (s *Store) BySubtopic(ctx context.Context, topic, subtopic string) ([]VideoRecord, error) {
	var recs []VideoRecord
	err := s.db.WithContext(ctx).
		Where("topic = ? AND subtopic = ?", topic, subtopic).
		Order("completed_at ASC").
		Find(&recs).Error
	return recs, err
}
