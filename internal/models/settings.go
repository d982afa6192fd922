package models

import (
	"time"
)

// CommissionSettings is the singleton configuration row the engine reads on
// every evaluation. It is hot-reloadable: the settings service caches it and
// invalidates on update.
type CommissionSettings struct {
	ID uint `gorm:"primarykey"`

	// Percentage rates per upline level: level 1 pays the direct sponsor
	// (chain level 0), and so on.
	CommissionLevel1 float64 `gorm:"not null" json:"commission_level_1"`
	CommissionLevel2 float64 `gorm:"not null" json:"commission_level_2"`
	CommissionLevel3 float64 `gorm:"not null" json:"commission_level_3"`

	// Rate for a click-tracked client referrer credited at level 0.
	ClientReferralCommission float64 `gorm:"not null" json:"client_referral_commission"`

	// Days a commission stays blocked before releasing to available.
	BonusBlockDays int `gorm:"not null" json:"bonus_block_days"`

	MinWithdrawalAmount      float64 `gorm:"not null" json:"min_withdrawal_amount"`
	WithdrawalFeePercent     float64 `gorm:"not null" json:"withdrawal_fee_percent"`
	WithdrawalProcessingDays int     `gorm:"not null" json:"withdrawal_processing_days"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCommissionSettings returns the settings used until an operator
// configures the platform.
func DefaultCommissionSettings() CommissionSettings {
	return CommissionSettings{
		CommissionLevel1:         10,
		CommissionLevel2:         5,
		CommissionLevel3:         5,
		ClientReferralCommission: 5,
		BonusBlockDays:           7,
		MinWithdrawalAmount:      50,
		WithdrawalFeePercent:     5,
		WithdrawalProcessingDays: 7,
	}
}

// RateForLevel returns the configured percentage for a chain level
// (0 = direct sponsor). Unknown levels pay nothing.
func (s CommissionSettings) RateForLevel(level int) float64 {
	switch level {
	case 0:
		return s.CommissionLevel1
	case 1:
		return s.CommissionLevel2
	case 2:
		return s.CommissionLevel3
	}
	return 0
}
