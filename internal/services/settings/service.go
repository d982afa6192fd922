// Package settings serves the hot-reloadable CommissionSettings the engine
// reads on every distribution and withdrawal.
package settings

import (
	"context"
	"fmt"
	"log"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/repositories/cache"
)

// CacheTTL bounds staleness when an external writer updates the settings
// row without going through Update.
const CacheTTL = time.Minute

// Service exposes the current commission settings.
type Service interface {
	Get(ctx context.Context) (*models.CommissionSettings, error)
	Update(ctx context.Context, settings *models.CommissionSettings) error
}

type service struct {
	repo  repositories.SettingsRepository
	cache *cache.CacheService
}

func NewService(repo repositories.SettingsRepository, cacheService *cache.CacheService) Service {
	if repo == nil {
		panic("settings repository is required")
	}
	return &service{
		repo:  repo,
		cache: cacheService,
	}
}

func (s *service) Get(ctx context.Context) (*models.CommissionSettings, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSettings(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	settings, err := s.repo.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheSettings(ctx, settings, CacheTTL); err != nil {
			log.Printf("failed to cache settings: %v", err)
		}
	}
	return settings, nil
}

func (s *service) Update(ctx context.Context, settings *models.CommissionSettings) error {
	if err := validate(settings); err != nil {
		return err
	}

	if err := s.repo.Update(settings); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	// Write-through invalidation so the next evaluation sees fresh rates.
	if s.cache != nil {
		if err := s.cache.InvalidateSettings(ctx); err != nil {
			log.Printf("failed to invalidate settings cache: %v", err)
		}
	}
	return nil
}

func validate(settings *models.CommissionSettings) error {
	if settings == nil {
		return ErrInvalidSettings
	}
	for _, rate := range []float64{
		settings.CommissionLevel1,
		settings.CommissionLevel2,
		settings.CommissionLevel3,
		settings.ClientReferralCommission,
		settings.WithdrawalFeePercent,
	} {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("%w: rate %.2f out of range", ErrInvalidSettings, rate)
		}
	}
	if settings.BonusBlockDays < 0 || settings.MinWithdrawalAmount < 0 || settings.WithdrawalProcessingDays < 0 {
		return ErrInvalidSettings
	}
	return nil
}
