package service

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/folderstorage"
	"arbor/internal/session"
	"arbor/internal/virtualtree"
)

// Scope identifies the acting session for one tree operation.
type Scope struct {
	UserID    string `json:"user_id"`
	ContextID string `json:"context_id"`
	SessionID string `json:"session_id"`
	Locale    string `json:"locale,omitempty"`
}

func (s Scope) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.UserID, validation.Required),
		validation.Field(&s.ContextID, validation.Required),
		validation.Field(&s.SessionID, validation.Required),
	)
}

// SubfoldersResult carries an ordered listing plus the non-fatal problems
// collected while assembling it.
type SubfoldersResult struct {
	Keys     []models.OrderingKey `json:"keys"`
	Warnings []string             `json:"warnings,omitempty"`
}

// ConsistencyResult reports one maintenance pass.
type ConsistencyResult struct {
	Warnings []string `json:"warnings,omitempty"`
}

// CreateFolderRequest describes a folder creation below a virtual parent.
type CreateFolderRequest struct {
	TreeID      string             `json:"tree_id"`
	ParentID    string             `json:"parent_id"`
	Name        string             `json:"name"`
	ContentType models.ContentType `json:"content_type"`
	Type        models.FolderType  `json:"type"`
}

func (r CreateFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TreeID, validation.Required),
		validation.Field(&r.ParentID, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.ContentType, validation.Required),
	)
}

// UpdateFolderRequest records a rename and/or re-parenting.
type UpdateFolderRequest struct {
	TreeID      string `json:"tree_id"`
	FolderID    string `json:"folder_id"`
	NewName     string `json:"new_name,omitempty"`
	NewParentID string `json:"new_parent_id,omitempty"`
}

func (r UpdateFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TreeID, validation.Required),
		validation.Field(&r.FolderID, validation.Required),
		validation.Field(&r.NewName, validation.Length(0, 255)),
	)
}

// TreeService is the application face of the virtual folder overlay. It
// resolves the caller's session, builds the per-operation parameters and
// delegates to the aggregation engine and its maintenance companions.
type TreeService struct {
	engine   *virtualtree.Engine
	repairer *virtualtree.Repairer
	cleaner  *virtualtree.Cleaner
	sessions *session.Registry
	logger   *slog.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(
	engine *virtualtree.Engine,
	repairer *virtualtree.Repairer,
	cleaner *virtualtree.Cleaner,
	sessions *session.Registry,
	logger *slog.Logger,
) *TreeService {
	return &TreeService{
		engine:   engine,
		repairer: repairer,
		cleaner:  cleaner,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *TreeService) prepare(scope Scope, treeID string) (*folderstorage.Parameters, *virtualtree.Mirror, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if treeID != models.VirtualTreeID && treeID != models.RealTreeID {
		return nil, nil, &domain.ValidationError{Message: fmt.Sprintf("unknown tree %q", treeID)}
	}

	locale := language.English
	if scope.Locale != "" {
		tag, err := language.Parse(scope.Locale)
		if err == nil {
			locale = tag
		} else {
			s.logger.Debug("unparsable locale, falling back to English", "locale", scope.Locale)
		}
	}

	p := folderstorage.NewParameters(scope.UserID, scope.ContextID, locale)
	p.SessionID = scope.SessionID

	sess := s.sessions.Acquire(scope.SessionID, scope.UserID, scope.ContextID)
	return p, sess.Mirror(treeID), nil
}

func warningStrings(p *folderstorage.Parameters) []string {
	warnings := p.Warnings()
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Error()
	}
	return out
}

// GetFolder returns one folder of the tree with all overlays applied.
func (s *TreeService) GetFolder(ctx context.Context, scope Scope, treeID, folderID string) (*models.Folder, error) {
	if folderID == "" {
		return nil, &domain.ValidationError{Message: "folder id is required"}
	}
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return nil, err
	}

	w, err := s.engine.GetFolder(ctx, treeID, folderID, p, mirror)
	if err != nil {
		return nil, err
	}
	return w.Snapshot(), nil
}

// Subfolders returns the ordered subfolder listing of a parent folder.
func (s *TreeService) Subfolders(ctx context.Context, scope Scope, treeID, parentID string) (*SubfoldersResult, error) {
	if parentID == "" {
		return nil, &domain.ValidationError{Message: "parent folder id is required"}
	}
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return nil, err
	}

	keys, err := s.engine.Subfolders(ctx, treeID, parentID, p, mirror)
	if err != nil {
		return nil, err
	}
	return &SubfoldersResult{Keys: keys, Warnings: warningStrings(p)}, nil
}

// VisibleFolders walks the tree breadth-first from rootID down to depth and
// returns every reachable folder. depth 0 means the root's direct children.
func (s *TreeService) VisibleFolders(ctx context.Context, scope Scope, treeID, rootID string, depth int) ([]*models.Folder, error) {
	if rootID == "" {
		rootID = models.RootFolderID
	}
	if depth < 0 || depth > 10 {
		return nil, &domain.ValidationError{Message: "depth must be between 0 and 10"}
	}
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return nil, err
	}

	type level struct {
		id    string
		depth int
	}
	queue := []level{{id: rootID, depth: 0}}
	seen := map[string]bool{rootID: true}
	var out []*models.Folder

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		keys, err := s.engine.Subfolders(ctx, treeID, cur.id, p, mirror)
		if err != nil {
			// A broken branch must not hide the rest of the visible tree.
			p.AddWarning(err)
			continue
		}
		for _, k := range keys {
			if seen[k.FolderID] {
				continue
			}
			seen[k.FolderID] = true

			w, err := s.engine.GetFolder(ctx, treeID, k.FolderID, p, mirror)
			if err != nil {
				p.AddWarning(err)
				continue
			}
			out = append(out, w.Snapshot())
			if cur.depth < depth {
				queue = append(queue, level{id: k.FolderID, depth: cur.depth + 1})
			}
		}
	}
	return out, nil
}

// CreateFolder creates a folder below a virtual parent.
func (s *TreeService) CreateFolder(ctx context.Context, scope Scope, req *CreateFolderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p, mirror, err := s.prepare(scope, req.TreeID)
	if err != nil {
		return "", err
	}

	folder := &models.Folder{
		ParentID:    req.ParentID,
		Name:        req.Name,
		ContentType: req.ContentType,
		Type:        req.Type,
		Permissions: []models.Permission{{Entity: scope.UserID, Admin: true}},
	}
	return s.engine.CreateFolder(ctx, req.TreeID, folder, p, mirror)
}

// UpdateFolder stores a rename/re-parenting override.
func (s *TreeService) UpdateFolder(ctx context.Context, scope Scope, req *UpdateFolderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p, mirror, err := s.prepare(scope, req.TreeID)
	if err != nil {
		return err
	}
	return s.engine.UpdateFolder(ctx, req.TreeID, req.FolderID, req.NewName, req.NewParentID, p, mirror)
}

// DeleteFolder deletes a folder and notifies the user's other sessions.
func (s *TreeService) DeleteFolder(ctx context.Context, scope Scope, treeID, folderID string) error {
	if folderID == "" {
		return &domain.ValidationError{Message: "folder id is required"}
	}
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return err
	}
	return s.engine.DeleteFolder(ctx, treeID, folderID, p, mirror)
}

// UserSharedFolders lists the folders below the shared root that other users
// granted the caller access to.
func (s *TreeService) UserSharedFolders(ctx context.Context, scope Scope, treeID string) ([]*models.Folder, error) {
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return nil, err
	}
	return s.engine.UserSharedFolders(ctx, treeID, p, mirror)
}

// DefaultContentType reports the content type new folders default to.
func (s *TreeService) DefaultContentType(scope Scope, treeID string) (models.ContentType, error) {
	if _, _, err := s.prepare(scope, treeID); err != nil {
		return "", err
	}
	return s.engine.DefaultContentType()
}

// TypeByParent reports the visibility class a folder created below parentID
// would get.
func (s *TreeService) TypeByParent(ctx context.Context, scope Scope, treeID, parentID string) (models.FolderType, error) {
	if parentID == "" {
		return models.TypeNone, &domain.ValidationError{Message: "parent folder id is required"}
	}
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return models.TypeNone, err
	}
	return s.engine.TypeByParent(ctx, treeID, parentID, p, mirror)
}

// CheckConsistency runs one repair pass over the user's virtual tree.
func (s *TreeService) CheckConsistency(ctx context.Context, scope Scope, treeID string) (*ConsistencyResult, error) {
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return nil, err
	}
	if err := s.repairer.CheckConsistency(ctx, treeID, p, mirror); err != nil {
		return nil, err
	}
	return &ConsistencyResult{Warnings: warningStrings(p)}, nil
}

// CleanDuplicates collapses name-duplicate virtual folders. The returned id
// is non-empty when lookupID itself was removed and must be re-resolved.
func (s *TreeService) CleanDuplicates(ctx context.Context, scope Scope, treeID, lookupID string) (string, error) {
	p, mirror, err := s.prepare(scope, treeID)
	if err != nil {
		return "", err
	}
	return s.cleaner.CleanDuplicates(ctx, treeID, lookupID, p, mirror)
}

// ClearCache drops the caller's cached subfolder listings. Other users'
// entries are left to age out on their own.
func (s *TreeService) ClearCache(scope Scope) error {
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	s.engine.Cache().ClearUser(scope.UserID, scope.ContextID)
	s.logger.Info("subfolder cache cleared", "user_id", scope.UserID, "context_id", scope.ContextID)
	return nil
}
