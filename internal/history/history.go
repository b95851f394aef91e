// Package history keeps a local archive of completed downloads so repeated
// runs can skip videos that were already fetched.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ytget/ytgrab/internal/logx"
)

var hlog = logx.For(logx.History)

// Entry is one completed download.
type Entry struct {
	gorm.Model

	VideoID    string `gorm:"uniqueIndex"`
	Title      string
	Path       string
	Size       int64
	FinishedAt time.Time
}

// Store is a SQLite-backed download archive.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the archive database at filePath.
func Open(filePath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(filePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", filePath, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("archive migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	inner, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return inner.Close()
}

// Seen reports whether a video ID has already been recorded.
func (s *Store) Seen(videoID string) (bool, error) {
	var e Entry
	err := s.db.Where("video_id = ?", videoID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record upserts an entry keyed by video ID.
func (s *Store) Record(e Entry) error {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		UpdateAll: true,
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("record %s: %w", e.VideoID, err)
	}
	hlog.Debug("recorded download", "video_id", e.VideoID, "path", e.Path)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	err := s.db.Order("finished_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}
