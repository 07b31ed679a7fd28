// Package store is the persisted relational cache behind the entity fetchers:
// account, session and image snapshots, each row keyed by its entity's
// natural id. Pure data access; no networking.
package store

import (
	"context"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// Open connects to the cache database and migrates the three cache tables.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open cache database")
	}
	if err := db.AutoMigrate(&AccountRow{}, &SessionRow{}, &ImageRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate cache tables")
	}
	return &Store{db: db}, nil
}

// GetAccount returns nil without error on a cache miss.
func (s *Store) GetAccount(ctx context.Context, ocid string) (*AccountRow, error) {
	var row AccountRow
	err := s.db.WithContext(ctx).First(&row, "ocid = ?", ocid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveAccount replaces the whole row for row.OCID.
func (s *Store) SaveAccount(ctx context.Context, row *AccountRow) error {
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRow, error) {
	var row SessionRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) SaveSession(ctx context.Context, row *SessionRow) error {
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *Store) GetImage(ctx context.Context, hash string) ([]byte, error) {
	if hash == "" {
		return nil, nil
	}
	var row ImageRow
	err := s.db.WithContext(ctx).First(&row, "hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

func (s *Store) SaveImage(ctx context.Context, hash string, data []byte) error {
	return s.db.WithContext(ctx).Save(&ImageRow{Hash: hash, Data: data}).Error
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
