package folderstorage

import (
	"context"
	"sort"
	"strings"

	"arbor/internal/domain/models"
)

// UnifiedInboxServiceID identifies the pseudo-account aggregating every mail
// account's inbox.
const UnifiedInboxServiceID = "unifiedinbox"

// Account describes one external account (mail, messaging or file storage)
// surfaced as a folder subtree.
type Account struct {
	ID           string             `json:"id"`
	ServiceID    string             `json:"service_id"`
	DisplayName  string             `json:"display_name"`
	ContentType  models.ContentType `json:"content_type"`
	RootFolderID string             `json:"root_folder_id"`
	Default      bool               `json:"default"`
}

// IsUnified reports whether the account is the Unified-Inbox pseudo-account.
func (a Account) IsUnified() bool { return a.ServiceID == UnifiedInboxServiceID }

// AccountSource enumerates a user's external accounts. The primary mail
// account is the one flagged Default.
type AccountSource interface {
	MailAccounts(ctx context.Context, p *Parameters) ([]Account, error)
	MessagingAccounts(ctx context.Context, p *Parameters) ([]Account, error)
	FileStorageAccounts(ctx context.Context, p *Parameters) ([]Account, error)
	UnifiedInboxEnabled(ctx context.Context, p *Parameters) (bool, error)
}

// SortMailAccounts orders mail accounts for presentation: the Unified-Inbox
// pseudo-account first, the default (primary) account last, everything else
// alphabetically by display name.
func SortMailAccounts(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		switch {
		case a.IsUnified() != b.IsUnified():
			return a.IsUnified()
		case a.Default != b.Default:
			return b.Default
		default:
			return strings.ToLower(a.DisplayName) < strings.ToLower(b.DisplayName)
		}
	})
}

// SortAccountsByName orders accounts alphabetically by display name, used for
// messaging and file-storage account blocks.
func SortAccountsByName(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		return strings.ToLower(accounts[i].DisplayName) < strings.ToLower(accounts[j].DisplayName)
	})
}
