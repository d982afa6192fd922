package models

import (
	"time"

	"gorm.io/gorm"
)

// AccessLevel determines a user's place in the MLM hierarchy and whether
// they are eligible to earn network commissions.
type AccessLevel string

const (
	AccessLevelAdminTechnical AccessLevel = "admin_technical"
	AccessLevelAdminGeneral   AccessLevel = "admin_general"
	AccessLevelSupervisor     AccessLevel = "supervisor"
	AccessLevelLeader         AccessLevel = "leader"
	AccessLevelReseller       AccessLevel = "reseller"
	AccessLevelClient         AccessLevel = "client"
	AccessLevelAmbassador     AccessLevel = "ambassador"
)

// Valid reports whether the level is one of the closed set.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessLevelAdminTechnical, AccessLevelAdminGeneral, AccessLevelSupervisor,
		AccessLevelLeader, AccessLevelReseller, AccessLevelClient, AccessLevelAmbassador:
		return true
	}
	return false
}

// IsAdmin reports whether the level grants admin access.
func (l AccessLevel) IsAdmin() bool {
	return l == AccessLevelAdminTechnical || l == AccessLevelAdminGeneral
}

type User struct {
	gorm.Model
	Email       string      `gorm:"uniqueIndex;not null"`
	Password    string      `gorm:"not null" json:"-"`
	Name        string      `gorm:"not null"`
	Phone       string      `gorm:"uniqueIndex;not null"`
	CPF         string      `gorm:"column:cpf;uniqueIndex"`
	AccessLevel AccessLevel `gorm:"type:varchar(32);not null;default:'client'"`
	Status      string      `gorm:"default:'active'"`

	// Referral placement. SponsorID is set once at registration and never
	// changes; it is a weak back-reference into the graph, not an owned
	// association.
	SponsorID   *uint  `gorm:"index"`
	SponsorCode string `gorm:"uniqueIndex;not null"`

	// Running balances. Mutated only by the balance lifecycle service via
	// atomic single-row updates; the commission/withdrawal ledger is the
	// source of truth these are reconciled against.
	AvailableBalance float64 `gorm:"not null;default:0"`
	BlockedBalance   float64 `gorm:"not null;default:0"`

	PayoutDetails *PayoutDetails `gorm:"embedded;embeddedPrefix:payout_"`

	LastLoginAt  time.Time
	TokenVersion int `gorm:"default:1"`
}

// PayoutDetails holds the bank/PIX destination a withdrawal is paid to.
type PayoutDetails struct {
	BankName    string `json:"bank_name"`
	BankCode    string `json:"bank_code"`
	Agency      string `json:"agency"`
	Account     string `json:"account"`
	AccountType string `json:"account_type"`
	PixKey      string `json:"pix_key"`
}

// Complete reports whether the details are sufficient to pay out to,
// either a full bank account or a PIX key.
func (p *PayoutDetails) Complete() bool {
	if p == nil {
		return false
	}
	if p.PixKey != "" {
		return true
	}
	return p.BankCode != "" && p.Agency != "" && p.Account != ""
}
