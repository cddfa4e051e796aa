package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"arbor/internal/httputil"
	"arbor/internal/service"
)

// TreeHandler handles HTTP requests for virtual folder tree operations
type TreeHandler struct {
	trees  *service.TreeService
	logger *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(trees *service.TreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{trees: trees, logger: logger}
}

// GetFolder returns one folder of a tree with all overlays applied
func (h *TreeHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	folderID := r.PathValue("id")

	folder, err := h.trees.GetFolder(r.Context(), requestScope(r), treeID, folderID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// ListSubfolders returns the ordered subfolder listing of a parent folder
func (h *TreeHandler) ListSubfolders(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	parentID := r.PathValue("id")

	result, err := h.trees.Subfolders(r.Context(), requestScope(r), treeID, parentID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// VisibleFolders returns the folders reachable from a root, breadth-first
func (h *TreeHandler) VisibleFolders(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	rootID := r.URL.Query().Get("root")

	depth := 1
	if d := r.URL.Query().Get("depth"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "depth must be an integer")
			return
		}
		depth = parsed
	}

	folders, err := h.trees.VisibleFolders(r.Context(), requestScope(r), treeID, rootID, depth)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folders)
}

// CreateFolder creates a folder below a virtual parent
func (h *TreeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.TreeID = r.PathValue("tree")

	id, err := h.trees.CreateFolder(r.Context(), requestScope(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateFolder stores a rename/re-parenting override
func (h *TreeHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.TreeID = r.PathValue("tree")
	req.FolderID = r.PathValue("id")

	if err := h.trees.UpdateFolder(r.Context(), requestScope(r), &req); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder deletes a folder
func (h *TreeHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	folderID := r.PathValue("id")

	if err := h.trees.DeleteFolder(r.Context(), requestScope(r), treeID, folderID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConsistency runs a repair pass over the caller's virtual tree
func (h *TreeHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")

	result, err := h.trees.CheckConsistency(r.Context(), requestScope(r), treeID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// CleanDuplicates collapses name-duplicate virtual folders
func (h *TreeHandler) CleanDuplicates(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	lookupID := r.URL.Query().Get("lookup")

	deleted, err := h.trees.CleanDuplicates(r.Context(), requestScope(r), treeID, lookupID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"deleted_lookup_id": deleted})
}

// ListSharedFolders returns the folders other users shared with the caller
func (h *TreeHandler) ListSharedFolders(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")

	folders, err := h.trees.UserSharedFolders(r.Context(), requestScope(r), treeID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folders)
}

// GetDefaultContentType returns the content type new folders default to
func (h *TreeHandler) GetDefaultContentType(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")

	ct, err := h.trees.DefaultContentType(requestScope(r), treeID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"content_type": string(ct)})
}

// GetTypeByParent returns the visibility class a folder created below the
// given parent would get
func (h *TreeHandler) GetTypeByParent(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("tree")
	parentID := r.PathValue("id")

	folderType, err := h.trees.TypeByParent(r.Context(), requestScope(r), treeID, parentID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]int{"type": int(folderType)})
}

// ClearCache drops the caller's cached subfolder listings
func (h *TreeHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.trees.ClearCache(requestScope(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck reports liveness
func (h *TreeHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
