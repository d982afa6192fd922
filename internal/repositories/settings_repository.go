package repositories

import (
	"errors"
	"fmt"

	"rede/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository persists the singleton CommissionSettings row.
type SettingsRepository interface {
	// Get returns the settings row, creating it with defaults on first use.
	Get() (*models.CommissionSettings, error)
	Update(settings *models.CommissionSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get() (*models.CommissionSettings, error) {
	var settings models.CommissionSettings
	err := r.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.DefaultCommissionSettings()
		if err := r.db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("failed to seed default settings: %w", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

func (r *settingsRepository) Update(settings *models.CommissionSettings) error {
	if err := r.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
