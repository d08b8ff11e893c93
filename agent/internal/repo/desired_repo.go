package repo

import (
	"errors"

	"azure-iot-serializer/agent/internal/db"

	"gorm.io/gorm"
)

type DesiredRepository struct {
	db *gorm.DB
}

func NewDesiredRepository(db *gorm.DB) *DesiredRepository {
	return &DesiredRepository{db: db}
}

func (r *DesiredRepository) Create(s *db.DesiredSnapshot) error {
	return r.db.Create(s).Error
}

func (r *DesiredRepository) Latest(deviceID string, limit int) ([]db.DesiredSnapshot, error) {
	var out []db.DesiredSnapshot
	if err := r.db.Where("device_id = ?", deviceID).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LastApplied returns the newest snapshot whose ingestion succeeded, or nil.
func (r *DesiredRepository) LastApplied(deviceID string) (*db.DesiredSnapshot, error) {
	var s db.DesiredSnapshot
	err := r.db.Where("device_id = ? AND result = ?", deviceID, "success").Order("id DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
