// Package yamlaccounts provides a file-backed account source. Deployments
// without a provisioning service describe each user's external accounts in a
// YAML file loaded at startup.
package yamlaccounts

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"arbor/internal/domain/models"
	"arbor/internal/folderstorage"
)

type accountEntry struct {
	ID          string `yaml:"id"`
	ServiceID   string `yaml:"service_id"`
	DisplayName string `yaml:"display_name"`
	RootFolder  string `yaml:"root_folder"`
	Default     bool   `yaml:"default"`
}

type userEntry struct {
	Mail         []accountEntry `yaml:"mail"`
	Messaging    []accountEntry `yaml:"messaging"`
	FileStorage  []accountEntry `yaml:"file_storage"`
	UnifiedInbox bool           `yaml:"unified_inbox"`
}

type accountsFile struct {
	Users map[string]userEntry `yaml:"users"`
}

// Source serves per-user account lists from a YAML file. The file is read
// once; edits require a restart.
type Source struct {
	users map[string]userEntry
}

var _ folderstorage.AccountSource = (*Source)(nil)

// Load parses the accounts file at path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Source from raw YAML.
func Parse(data []byte) (*Source, error) {
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if file.Users == nil {
		file.Users = map[string]userEntry{}
	}
	return &Source{users: file.Users}, nil
}

// MailAccounts returns the user's mail accounts.
func (s *Source) MailAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	return s.convert(s.users[p.UserID].Mail, models.ContentTypeMail), nil
}

// MessagingAccounts returns the user's messaging accounts.
func (s *Source) MessagingAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	return s.convert(s.users[p.UserID].Messaging, models.ContentTypeMessaging), nil
}

// FileStorageAccounts returns the user's file storage accounts.
func (s *Source) FileStorageAccounts(ctx context.Context, p *folderstorage.Parameters) ([]folderstorage.Account, error) {
	return s.convert(s.users[p.UserID].FileStorage, models.ContentTypeInfostore), nil
}

// UnifiedInboxEnabled reports whether the user opted in to the aggregated
// inbox pseudo-account.
func (s *Source) UnifiedInboxEnabled(ctx context.Context, p *folderstorage.Parameters) (bool, error) {
	return s.users[p.UserID].UnifiedInbox, nil
}

func (s *Source) convert(entries []accountEntry, contentType models.ContentType) []folderstorage.Account {
	accounts := make([]folderstorage.Account, 0, len(entries))
	for _, e := range entries {
		rootID := e.RootFolder
		if rootID == "" {
			rootID = e.ServiceID + "0"
		}
		accounts = append(accounts, folderstorage.Account{
			ID:           e.ID,
			ServiceID:    e.ServiceID,
			DisplayName:  e.DisplayName,
			ContentType:  contentType,
			RootFolderID: rootID,
			Default:      e.Default,
		})
	}
	return accounts
}
