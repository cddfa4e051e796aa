package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"arbor/internal/httputil"
	"arbor/internal/service/infostore"
)

// InfostoreHandler handles HTTP requests for document metadata and versions
type InfostoreHandler struct {
	docs   *infostore.DocumentService
	logger *slog.Logger
}

// NewInfostoreHandler creates a new infostore handler
func NewInfostoreHandler(docs *infostore.DocumentService, logger *slog.Logger) *InfostoreHandler {
	return &InfostoreHandler{docs: docs, logger: logger}
}

// CreateDocument creates a document with its first version
func (h *InfostoreHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req infostore.CreateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.CreateDocument(r.Context(), httputil.GetIdentity(r).UserID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// GetDocument returns one document's metadata
func (h *InfostoreHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

// ListDocuments lists the documents of a folder
func (h *InfostoreHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folder")
	docs, err := h.docs.ListDocuments(r.Context(), folderID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// UpdateDocument changes document metadata
func (h *InfostoreHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req infostore.UpdateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = r.PathValue("id")

	doc, err := h.docs.UpdateDocument(r.Context(), httputil.GetIdentity(r).UserID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes a document and all its versions
func (h *InfostoreHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddVersion appends a revision to a document
func (h *InfostoreHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	var req infostore.AddVersionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.DocumentID = r.PathValue("id")

	version, err := h.docs.AddVersion(r.Context(), httputil.GetIdentity(r).UserID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, version)
}

// ListVersions lists a document's revisions
func (h *InfostoreHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.docs.ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, versions)
}

// SetCurrentVersion switches a document to an existing revision
func (h *InfostoreHandler) SetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "version number must be an integer")
		return
	}

	if err := h.docs.SetCurrentVersion(r.Context(), r.PathValue("id"), number); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
