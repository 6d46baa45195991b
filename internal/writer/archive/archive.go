// internal/writer/archive/archive.go
package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/poller"
)

// StoredRecord is one successful poll.
type StoredRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	DeviceID   string    `gorm:"index;not null"`
	DateTime   time.Time `gorm:"index;not null"`
	Serial     string
	UnitID     uint8
	Secs       uint32
	DeviceTime *time.Time
	Resets     string // comma separated channel numbers
	Stale      string

	Observations []StoredObservation `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

func (StoredRecord) TableName() string { return "records" }

// StoredObservation is one named value of a record.
type StoredObservation struct {
	ID       uint    `gorm:"primaryKey"`
	RecordID string  `gorm:"index;size:36;not null"`
	Name     string  `gorm:"not null"`
	Value    float64 `gorm:"not null"`
}

func (StoredObservation) TableName() string { return "observations" }

// Archive stores records to the local file system (sqlite).
type Archive struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	if err := db.AutoMigrate(&StoredRecord{}, &StoredObservation{}); err != nil {
		return nil, fmt.Errorf("archive: migrate database: %w", err)
	}
	return &Archive{db: db}, nil
}

// Write stores the record of a successful poll; failed polls are skipped.
func (a *Archive) Write(res poller.PollResult) error {
	if res.Err != nil || res.Record == nil {
		return nil
	}
	if err := a.db.Create(newStoredRecord(res.Record)).Error; err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// Latest returns up to limit records of one device, newest first.
func (a *Archive) Latest(deviceID string, limit int) ([]StoredRecord, error) {
	var out []StoredRecord
	result := a.db.Preload("Observations").
		Where("device_id = ?", deviceID).
		Order("date_time desc").
		Limit(limit).
		Find(&out)
	if result.Error != nil {
		return nil, result.Error
	}
	return out, nil
}

func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newStoredRecord(r *delta.Record) *StoredRecord {
	id := r.ID.String()
	obs := make([]StoredObservation, 0, len(r.Values))
	for name, v := range r.Values {
		obs = append(obs, StoredObservation{RecordID: id, Name: name, Value: v})
	}
	return &StoredRecord{
		ID:           id,
		DeviceID:     r.DeviceID,
		DateTime:     r.DateTime,
		Serial:       r.Serial,
		UnitID:       r.UnitID,
		Secs:         r.Secs,
		DeviceTime:   r.DeviceTime,
		Resets:       joinInts(r.Resets),
		Stale:        joinInts(r.Stale),
		Observations: obs,
	}
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}
