package repo

import (
	"azure-iot-serializer/agent/internal/db"

	"gorm.io/gorm"
)

type CommandRepository struct {
	db *gorm.DB
}

func NewCommandRepository(db *gorm.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

func (r *CommandRepository) Create(rec *db.CommandRecord) error {
	return r.db.Create(rec).Error
}

// Exists reports whether commandID was already recorded, which lets
// transports drop redelivered envelopes.
func (r *CommandRepository) Exists(commandID string) (bool, error) {
	var n int64
	if err := r.db.Model(&db.CommandRecord{}).Where("command_id = ?", commandID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Latest returns up to limit records for deviceID, newest first.
func (r *CommandRepository) Latest(deviceID string, limit int) ([]db.CommandRecord, error) {
	var recs []db.CommandRecord
	if err := r.db.Where("device_id = ?", deviceID).Order("id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
