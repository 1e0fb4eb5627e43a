// Package accounts owns account registration, password authentication, and the
// unique-by-email account store.
package accounts

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Account is a platform identity reachable by password or by a linked OAuth login.
type Account struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Email          string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_accounts_email" json:"email"`
	PasswordDigest string    `gorm:"column:password_digest;size:255;not null" json:"-"`
	DisplayName    string    `gorm:"column:display_name;size:320;not null" json:"display_name"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index:idx_accounts_created" json:"created_at"`
}

// TableName binds Account to its table.
func (Account) TableName() string {
	return "accounts"
}

// NormalizeEmail returns the uniqueness key for an email address.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeDisplayName(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
