// Package prefs persists operator preferences in a small sqlite database.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// KeySoundEnabled stores whether audio cues are played.
const KeySoundEnabled = "sound_enabled"

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("preference not found")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Setting is one stored preference.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// Store reads and writes preferences.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the preference database at path and
// migrates its schema. Use MemoryPath for a throwaway store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prefs")

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create prefs directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.NewSlogLogger(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   "botctl_",
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}

	// sqlite allows one writer; a single connection also keeps an
	// in-memory database alive and shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("prefs db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Setting{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate prefs db: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Get returns the stored value for key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var setting Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return setting.Value, nil
}

// GetWithDefault returns the stored value, or def when unset or unreadable.
func (s *Store) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to read preference", "key", key, "error", err)
		}
		return def
	}
	return v
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&Setting{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// All returns every stored preference.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	var settings []Setting
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	out := make(map[string]string, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Bool returns a boolean preference, or def when unset or unparsable.
func (s *Store) Bool(ctx context.Context, key string, def bool) bool {
	raw := s.GetWithDefault(ctx, key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("ignoring unparsable preference", "key", key, "value", raw)
		return def
	}
	return b
}

// SetBool stores a boolean preference.
func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// LoadSound returns the stored sound preference, defaulting to def.
func (s *Store) LoadSound(ctx context.Context, def bool) bool {
	return s.Bool(ctx, KeySoundEnabled, def)
}

// SaveSound stores the sound preference.
func (s *Store) SaveSound(ctx context.Context, on bool) error {
	return s.SetBool(ctx, KeySoundEnabled, on)
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
