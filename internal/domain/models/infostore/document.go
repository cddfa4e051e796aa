package infostore

import "time"

// Document is the metadata record of a versioned file attachment. File
// content itself lives in a blob store; this service owns metadata,
// versioning and filename uniqueness only.
type Document struct {
	ID          string    `json:"id"`
	FolderID    string    `json:"folder_id"`
	Title       string    `json:"title"`
	FileName    string    `json:"file_name"`
	MIMEType    string    `json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	Version     int       `json:"version"`
	NumVersions int       `json:"num_versions"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	ModifiedBy  string    `json:"modified_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Version is one stored revision of a document.
type Version struct {
	DocumentID string    `json:"document_id"`
	Number     int       `json:"number"`
	FileName   string    `json:"file_name"`
	MIMEType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	Comment    string    `json:"comment,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reservation is a filename-uniqueness reservation inside one folder. It
// blocks concurrent uploads from claiming the same filename before the
// document row exists.
type Reservation struct {
	FolderID  string    `json:"folder_id"`
	FileName  string    `json:"file_name"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
