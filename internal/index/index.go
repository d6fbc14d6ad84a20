// Package index holds the invitation-number to serial-number lookup. It is
// bulk-loaded once per run from the links table into a SQLite database and
// queried read-only while files are processed. The database is a disposable
// cache; the links table stays authoritative.
package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Link is one row of the identity index.
type Link struct {
	InvitationNumber int64  `gorm:"primaryKey;column:invitation_number"`
	SerialNumber     string `gorm:"column:serial_number;not null"`
}

// Index is the opened lookup store.
type Index struct {
	db   *gorm.DB
	path string
}

const insertBatchSize = 500

// Build loads the links table at linksPath into a fresh SQLite database at
// dbPath. Duplicate invitation numbers and non-numeric invitation values are
// configuration errors: the run must not start.
func Build(dbPath, linksPath string, delimiter rune, skipHeader bool) (*Index, error) {
	links, err := loadLinks(linksPath, delimiter, skipHeader)
	if err != nil {
		return nil, err
	}

	// Stale cache from an earlier run must not leak old mappings.
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("could not remove stale index %s: %w", dbPath, err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open index database: %w", err)
	}

	if err := db.AutoMigrate(&Link{}); err != nil {
		return nil, fmt.Errorf("could not migrate index schema: %w", err)
	}

	if len(links) > 0 {
		if err := db.CreateInBatches(links, insertBatchSize).Error; err != nil {
			return nil, fmt.Errorf("could not insert links: %w", err)
		}
	}

	return &Index{db: db, path: dbPath}, nil
}

// Open opens an existing index database read-only for concurrent lookups.
func Open(dbPath string) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open index database: %w", err)
	}
	return &Index{db: db, path: dbPath}, nil
}

// Lookup returns the serial number for an invitation number. A missing entry
// is not an error; it routes the file to quarantine.
func (ix *Index) Lookup(invitation int64) (string, bool, error) {
	var link Link
	err := ix.db.First(&link, "invitation_number = ?", invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index lookup failed: %w", err)
	}
	return link.SerialNumber, true, nil
}

// Count returns the number of indexed links.
func (ix *Index) Count() (int64, error) {
	var n int64
	if err := ix.db.Model(&Link{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("index count failed: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Discard closes the index and deletes the database file.
func (ix *Index) Discard() error {
	if err := ix.Close(); err != nil {
		return err
	}
	if err := os.Remove(ix.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadLinks(path string, delimiter rune, skipHeader bool) ([]Link, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open links table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1

	var links []Link
	seen := make(map[int64]bool)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("links table row %d: %w", row+1, err)
		}
		row++
		if row == 1 && skipHeader {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("links table row %d: want 2 columns, got %d", row, len(record))
		}

		// Decimal only: zero-padded invitation numbers must keep their value.
		invitation, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("links table row %d: invalid invitation number %q", row, record[0])
		}

		serial := strings.TrimSpace(record[1])
		if serial == "" {
			return nil, fmt.Errorf("links table row %d: empty serial number", row)
		}

		if seen[invitation] {
			return nil, fmt.Errorf("links table row %d: duplicate invitation number %d", row, invitation)
		}
		seen[invitation] = true

		links = append(links, Link{InvitationNumber: invitation, SerialNumber: serial})
	}

	return links, nil
}
