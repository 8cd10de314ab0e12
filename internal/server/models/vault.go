package models

import "time"

// VaultDocument is an encrypted document. The data key is stored only in
// wrapped form (EncryptedDataKey/DataKeyIV/DataKeyTag under the master key
// of KeyVersion). Content lives either inline in Ciphertext or, when
// StorageKey is set, in object storage.
type VaultDocument struct {
	ID          string
	Name        string
	MimeType    string
	SizeBytes   int64
	Description string
	Type        string
	OwnerID     string
	KeyVersion  int

	EncryptedDataKey []byte
	DataKeyIV        []byte
	DataKeyTag       []byte

	ContentIV  []byte
	ContentTag []byte
	Ciphertext []byte
	StorageKey string

	CreatedAt time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

type AccessGrant struct {
	DocumentID string
	UserID     string
	Role       Role
}

type AuditAction string

const (
	AuditUpload   AuditAction = "upload"
	AuditView     AuditAction = "view"
	AuditDownload AuditAction = "download"
	AuditDelete   AuditAction = "delete"
)

// AuditEntry is append-only. UserID is empty for unrestricted (no requester)
// access.
type AuditEntry struct {
	ID         int64
	DocumentID string
	UserID     string
	Action     AuditAction
	CreatedAt  time.Time
}
