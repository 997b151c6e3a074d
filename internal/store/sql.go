package store

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// connectionRow is one saved connection.
type connectionRow struct {
	ID       int `gorm:"primaryKey;autoIncrement:false"`
	Position int `gorm:"index"`
	Name     string
	Host     string
	Port     string
}

func (connectionRow) TableName() string { return "connections" }

// settingRow holds scalar state (counter, theme).
type settingRow struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (settingRow) TableName() string { return "settings" }

const (
	settingCounter = "counter"
	settingTheme   = "theme"
)

// SQLStore keeps state in a SQLite database through gorm.
type SQLStore struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenSQLStore opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLStore(path string, log logger.Logger) (*SQLStore, error) {
	if log == nil {
		log = logger.Noop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrStore,
				"Couldn't create "+filepath.Dir(path),
				"Check the directory permissions or set store.path")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.New(logger.Printer(logger.WithPrefix(log, "[sqlite]")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't open database "+path,
			"Check the path or switch store.backend to file")
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.AutoMigrate(&connectionRow{}, &settingRow{}); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't migrate database "+path, "")
	}
	log.Debug("opened sqlite store %s", path)
	return &SQLStore{db: db, log: log}, nil
}

func (s *SQLStore) Load() (State, error) {
	var rows []connectionRow
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return State{}, errors.WrapWithCode(err, errors.ErrStore, "Couldn't load saved connections", "")
	}

	var settings []settingRow
	if err := s.db.Find(&settings).Error; err != nil {
		return State{}, errors.WrapWithCode(err, errors.ErrStore, "Couldn't load settings", "")
	}

	st := State{Theme: ThemeSystem}
	for _, r := range rows {
		st.Connections = append(st.Connections, telemetry.Record{ID: r.ID, Name: r.Name, Host: r.Host, Port: r.Port})
	}
	for _, kv := range settings {
		switch kv.Key {
		case settingCounter:
			n, err := strconv.Atoi(kv.Value)
			if err != nil {
				s.log.Warn("ignoring bad counter %q: %v", kv.Value, err)
				continue
			}
			st.Counter = n
		case settingTheme:
			st.Theme = normalizeTheme(Theme(kv.Value))
		}
	}
	return st, nil
}

// SaveConnections replaces the saved list and counter in one transaction.
func (s *SQLStore) SaveConnections(records []telemetry.Record, counter int) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&connectionRow{}).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			rows := make([]connectionRow, 0, len(records))
			for i, r := range records {
				rows = append(rows, connectionRow{ID: r.ID, Position: i, Name: r.Name, Host: r.Host, Port: r.Port})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return upsertSetting(tx, settingCounter, strconv.Itoa(counter))
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't save connections", "")
	}
	return nil
}

func (s *SQLStore) SaveTheme(theme Theme) error {
	if err := upsertSetting(s.db, settingTheme, string(normalizeTheme(theme))); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't save theme", "")
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsertSetting(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&settingRow{Key: key, Value: value}).Error
}
