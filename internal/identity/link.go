// Package identity resolves OAuth logins onto platform accounts.
package identity

import (
	"strings"
	"time"
)

// OAuthLink records that a provider-scoped user id belongs to an account.
type OAuthLink struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	AccountID      string    `gorm:"column:account_id;size:36;not null;index"`
	Provider       Provider  `gorm:"column:provider;size:32;not null;uniqueIndex:idx_oauth_links_provider_user,priority:1"`
	ProviderUserID string    `gorm:"column:provider_user_id;size:190;not null;uniqueIndex:idx_oauth_links_provider_user,priority:2"`
	EmailSnapshot  string    `gorm:"column:email_snapshot;size:320"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

// TableName exposes the table backing OAuth links.
func (OAuthLink) TableName() string {
	return "oauth_links"
}

func linkKey(provider Provider, providerUserID string) string {
	return string(provider) + ":" + providerUserID
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
