package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
)

// OpenDB opens (creating if needed) the local SQLite database with the
// pure-Go driver.
func OpenDB(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", lore.ErrMissingCredential)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("%w: create database dir: %w", lore.ErrStoreUnavailable, err)
		}
	}
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	}, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", lore.ErrStoreUnavailable, path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lore.ErrStoreUnavailable, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)
	logging.Store("opened local database %s", path)
	return db, nil
}

// SQLiteStore keeps entities in a local SQLite database. Ownership is
// enforced here: every query is scoped to the principal's user id.
type SQLiteStore struct {
	db        *gorm.DB
	principal Principal
	now       func() time.Time

	mu       sync.Mutex
	lastTime time.Time
}

// NewSQLiteStore migrates the entities table and returns the store.
func NewSQLiteStore(db *gorm.DB, principal Principal) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&EntityModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate entities: %w", lore.ErrStoreUnavailable, err)
	}
	return &SQLiteStore{db: db, principal: principal, now: time.Now}, nil
}

// List returns the owner's entities, newest first. Asking for another
// user's entities yields an empty list, as row-level security would.
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]lore.Entity, error) {
	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = creds.UserID
	}
	if ownerID != creds.UserID {
		return []lore.Entity{}, nil
	}

	var models []EntityModel
	err = s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("seq DESC").
		Find(&models).Error
	if err != nil {
		return nil, s.classify("list entities", err)
	}

	entities := make([]lore.Entity, 0, len(models))
	for _, m := range models {
		e, err := m.entity()
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping row %s: %v", m.ID, err)
			continue
		}
		entities = append(entities, e)
	}
	logging.StoreDebug("listed %d local entities for %s", len(entities), ownerID)
	return entities, nil
}

// Create inserts the draft with a fresh uuid and creation time.
func (s *SQLiteStore) Create(ctx context.Context, draft lore.Draft) (lore.Entity, error) {
	if err := draft.Validate(); err != nil {
		return lore.Entity{}, err
	}
	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return lore.Entity{}, err
	}
	if draft.OwnerID != creds.UserID {
		return lore.Entity{}, fmt.Errorf("%w: cannot create entities for another user", lore.ErrUnauthenticated)
	}

	m, err := modelFromDraft(draft)
	if err != nil {
		return lore.Entity{}, fmt.Errorf("%w: %w", lore.ErrValidation, err)
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.stamp()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&EntityModel{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}
		m.Seq = maxSeq + 1
		return tx.Create(&m).Error
	})
	if err != nil {
		return lore.Entity{}, s.classify("create entity", err)
	}

	e, err := m.entity()
	if err != nil {
		return lore.Entity{}, fmt.Errorf("%w: %w", lore.ErrQuery, err)
	}
	logging.Store("created local %s %s", e.Kind(), e.ID)
	return e, nil
}

// Delete removes the caller's entity by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: entity id is required", lore.ErrValidation)
	}
	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, creds.UserID).
		Delete(&EntityModel{})
	if res.Error != nil {
		return s.classify("delete entity", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: entity %s", lore.ErrNotFound, id)
	}
	logging.Store("deleted local entity %s", id)
	return nil
}

// stamp returns a creation time that never goes backwards, truncated to
// the microsecond so it survives the round trip through SQLite.
func (s *SQLiteStore) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

func (s *SQLiteStore) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", lore.ErrStoreUnavailable, op, err)
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s: %w", lore.ErrValidation, op, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "constraint") {
		return fmt.Errorf("%w: %s: %w", lore.ErrValidation, op, err)
	}
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "unable to open") || strings.Contains(msg, "sql: database is closed") {
		return fmt.Errorf("%w: %s: %w", lore.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %w", lore.ErrQuery, op, err)
}
