package repository

import (
	"arithmo_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) FindByUsername(username string) (*model.ProgressRecord, error) {
	var record model.ProgressRecord
	err := r.DB.Where("username = ?", username).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ProgressRepository) Create(record *model.ProgressRecord) error {
	return r.DB.Create(record).Error
}

func (r *ProgressRepository) Save(record *model.ProgressRecord) error {
	return r.DB.Save(record).Error
}

// Upsert 整文档覆盖写，save-progress / force-sync / reset 共用。
func (r *ProgressRepository) Upsert(username string, data model.ProgressData, now time.Time) (*model.ProgressRecord, error) {
	var record model.ProgressRecord
	err := r.DB.Where("username = ?", username).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		record = model.ProgressRecord{Username: username}
	} else if err != nil {
		return nil, err
	}

	record.Data = data
	record.LastUpdated = now
	if err := r.DB.Save(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
