// Package store persists scan records with gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buemura/rook/pkg/types"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Config selects the database.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"-"`
}

// Store is the gorm-backed record sink.
type Store struct {
	db *gorm.DB
}

// Open connects using cfg and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "rook.db"
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		if cfg.DSN == "" {
			return nil, errors.New("mysql driver requires a dsn")
		}
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dialector.Name(), err)
	}

	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ScanRecordRow{}, &ExtraCommandRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Persist writes rec and its extra commands in one transaction.
func (s *Store) Persist(ctx context.Context, runID string, rec *types.ScanRecord) error {
	row, err := toRow(runID, rec)
	if err != nil {
		return &types.PersistError{Target: rec.Target, Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commands := row.ExtraCommands
		row.ExtraCommands = nil
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for i := range commands {
			commands[i].ScanRecordID = row.ID
		}
		if len(commands) > 0 {
			if err := tx.Create(&commands).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &types.PersistError{Target: rec.Target, Err: err}
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	RunID  string
	Target string
	Limit  int
	Offset int
}

// List returns stored rows, newest first, without their payloads.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]ScanRecordRow, error) {
	q := s.db.WithContext(ctx).Model(&ScanRecordRow{}).Omit("payload").Preload("ExtraCommands", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
	if opts.RunID != "" {
		q = q.Where("run_id = ?", opts.RunID)
	}
	if opts.Target != "" {
		q = q.Where("target = ?", opts.Target)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []ScanRecordRow
	if err := q.Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Get restores the full record stored under id.
func (s *Store) Get(ctx context.Context, id uint) (*types.ScanRecord, error) {
	var row ScanRecordRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

// Delete removes a record and its extra commands.
func (s *Store) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_record_id = ?", id).Delete(&ExtraCommandRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&ScanRecordRow{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func toRow(runID string, rec *types.ScanRecord) (ScanRecordRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return ScanRecordRow{}, fmt.Errorf("encoding record: %w", err)
	}

	row := ScanRecordRow{
		RunID:           runID,
		Target:          rec.Target,
		IsWebTarget:     rec.IsWebTarget,
		HostLookup:      rec.HostLookup.Display(),
		PortScan:        rec.PortScan.Display(),
		SMB:             rec.SMB.Display(),
		FTP:             rec.FTP.Display(),
		DNSRecon:        rec.DNSRecon.Display(),
		ExploitModules:  rec.ExploitModules.Display(),
		WebContent:      rec.WebContent.Display(),
		Subdomains:      rec.Subdomains.Display(),
		Robots:          rec.Robots.Display(),
		Screenshot:      rec.Screenshot.Display(),
		WordPress:       rec.WordPress.Display(),
		SecurityHeaders: rec.SecurityHeaders.Display(),
		Advice:          rec.Advice,
		FailedStages:    len(rec.FailedStages()),
		Payload:         string(payload),
		ScannedAt:       rec.ScannedAt,
		ElapsedMS:       rec.Elapsed.Milliseconds(),
	}
	for i, cmd := range rec.ExtraCommands {
		row.ExtraCommands = append(row.ExtraCommands, ExtraCommandRow{
			Position: i,
			Command:  cmd.Command,
			Status:   string(cmd.Result.Status),
			Output:   cmd.Result.Display(),
		})
	}
	return row, nil
}

func fromRow(row ScanRecordRow) (*types.ScanRecord, error) {
	var rec types.ScanRecord
	if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
		return nil, fmt.Errorf("decoding record %d: %w", row.ID, err)
	}
	rec.Finalize(rec.ScannedAt)
	return &rec, nil
}
