package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	// Admin permissions
	PermissionReadAdmin  = "admin:read"
	PermissionWriteAdmin = "admin:write"

	// User permissions
	PermissionBalanceRead     = "balance:read"
	PermissionCommissionRead  = "commission:read"
	PermissionNetworkRead     = "network:read"
	PermissionWithdrawalRead  = "withdrawal:read"
	PermissionWithdrawalWrite = "withdrawal:write"
	PermissionChangePassword  = "user:change-password"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID       uint        `json:"user_id"`
	Email        string      `json:"email"`
	AccessLevel  AccessLevel `json:"access_level"`
	Permissions  []string    `json:"permissions"`
	TokenVersion int         `json:"token_version"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on access level.
func GetDefaultPermissions(level AccessLevel) []string {
	base := []string{
		PermissionBalanceRead,
		PermissionCommissionRead,
		PermissionNetworkRead,
		PermissionWithdrawalRead,
		PermissionWithdrawalWrite,
		PermissionChangePassword,
	}
	if level.IsAdmin() {
		return append(base, PermissionReadAdmin, PermissionWriteAdmin)
	}
	return base
}
