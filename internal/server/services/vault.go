package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/cryptox"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/blobstore"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type ReadMode string

const (
	ReadView     ReadMode = "view"
	ReadDownload ReadMode = "download"
)

type UploadInput struct {
	Name        string
	MimeType    string
	Description string
	Type        string
	Content     []byte
}

type UploadResult struct {
	ID        string
	CreatedAt time.Time
}

// Document is decrypted content returned by Read.
type Document struct {
	Name     string
	MimeType string
	Content  []byte
}

// VaultService stores documents under envelope encryption.
//
// An empty requester id means "no access restriction": the lookup ignores
// grants and the audit row is written without a user. Callers that expose
// the vault to end users must always pass an authenticated id.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keys        *cryptox.KeyRing
	blobs       blobstore.Store
	maxUpload   int64
	metrics     *metrics.Vault
	log         logging.Logger
}

// NewVaultService builds the vault. blobs may be nil, in which case
// ciphertext is stored inline in the document row.
func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, keys *cryptox.KeyRing,
	blobs blobstore.Store, maxUpload int64, l logging.Logger) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		keys:        keys,
		blobs:       blobs,
		maxUpload:   maxUpload,
		log:         l.With("module", "vault"),
	}
}

// SetMetrics enables operation counters. Without it the vault records none.
func (s *VaultService) SetMetrics(m *metrics.Vault) {
	s.metrics = m
}

func (s *VaultService) observe(action models.AuditAction) {
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(string(action)).Inc()
	}
}

// Upload encrypts in.Content under a fresh data key and writes the document,
// the owner grant and the upload audit row in one transaction. When object
// storage is configured the ciphertext is put first and removed again if the
// transaction fails.
func (s *VaultService) Upload(ctx context.Context, ownerID string, in UploadInput) (*UploadResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: document name is required", common.ErrValidation)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if int64(len(in.Content)) > s.maxUpload {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", common.ErrValidation, s.maxUpload)
	}
	if in.MimeType == "" {
		in.MimeType = "application/octet-stream"
	}

	dataKey, err := cryptox.GenerateDataKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dataKey)

	content, err := cryptox.Encrypt(in.Content, dataKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	wrapped, err := s.keys.Wrap(dataKey)
	if err != nil {
		return nil, err
	}

	doc := &models.VaultDocument{
		ID:               uuid.NewString(),
		Name:             in.Name,
		MimeType:         in.MimeType,
		SizeBytes:        int64(len(in.Content)),
		Description:      in.Description,
		Type:             in.Type,
		OwnerID:          ownerID,
		KeyVersion:       wrapped.Version,
		EncryptedDataKey: wrapped.Ciphertext,
		DataKeyIV:        wrapped.IV,
		DataKeyTag:       wrapped.Tag,
		ContentIV:        content.IV,
		ContentTag:       content.Tag,
	}

	if s.blobs != nil {
		doc.StorageKey = blobstore.NewKey()
		if err := s.blobs.Put(ctx, doc.StorageKey, content.Ciphertext); err != nil {
			return nil, err
		}
	} else {
		doc.Ciphertext = content.Ciphertext
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Documents(tx).Create(ctx, doc); err != nil {
			return fmt.Errorf("error creating document: %w", err)
		}
		grant := &models.AccessGrant{DocumentID: doc.ID, UserID: ownerID, Role: models.RoleOwner}
		if err := s.repomanager.Access(tx).Grant(ctx, grant); err != nil {
			return fmt.Errorf("error granting owner access: %w", err)
		}
		entry := &models.AuditEntry{DocumentID: doc.ID, UserID: ownerID, Action: models.AuditUpload}
		if err := s.repomanager.Audit(tx).Append(ctx, entry); err != nil {
			return fmt.Errorf("error writing audit: %w", err)
		}
		return nil
	})
	if err != nil {
		if doc.StorageKey != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), doc.StorageKey); derr != nil {
				s.log.Error(ctx, "orphaned vault object", "key", doc.StorageKey, "error", derr)
			}
		}
		return nil, err
	}

	s.observe(models.AuditUpload)
	s.log.Info(ctx, "document uploaded", "document_id", doc.ID, "size", doc.SizeBytes, "key_version", doc.KeyVersion)
	return &UploadResult{ID: doc.ID, CreatedAt: doc.CreatedAt}, nil
}

// Read decrypts a document and records one audit row for mode. A missing
// document and a missing grant are both common.ErrorNotFound. A tag
// mismatch on either envelope is common.ErrIntegrity and no content is
// returned.
func (s *VaultService) Read(ctx context.Context, documentID, requesterID string, mode ReadMode) (*Document, error) {
	var action models.AuditAction
	switch mode {
	case ReadView:
		action = models.AuditView
	case ReadDownload:
		action = models.AuditDownload
	default:
		return nil, fmt.Errorf("%w: unknown read mode %q", common.ErrValidation, mode)
	}
	if !validID(documentID) {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Documents(s.db)
	var doc *models.VaultDocument
	var err error
	if requesterID == "" {
		doc, err = repo.Get(ctx, documentID)
	} else {
		doc, err = repo.GetForUser(ctx, documentID, requesterID)
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := s.open(ctx, doc)
	if err != nil {
		if errors.Is(err, common.ErrIntegrity) {
			s.log.Warn(ctx, "document failed integrity check", "document_id", doc.ID, "key_version", doc.KeyVersion)
			if s.metrics != nil {
				s.metrics.IntegrityFailures.Inc()
			}
		}
		return nil, err
	}

	entry := &models.AuditEntry{DocumentID: doc.ID, UserID: requesterID, Action: action}
	if err := s.repomanager.Audit(s.db).Append(ctx, entry); err != nil {
		common.WipeByteArray(plaintext)
		return nil, fmt.Errorf("error writing audit: %w", err)
	}

	s.observe(action)
	return &Document{Name: doc.Name, MimeType: doc.MimeType, Content: plaintext}, nil
}

func (s *VaultService) open(ctx context.Context, doc *models.VaultDocument) ([]byte, error) {
	ciphertext := doc.Ciphertext
	if doc.StorageKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("%w: document %s is offloaded but object storage is not configured", common.ErrorInternal, doc.ID)
		}
		var err error
		ciphertext, err = s.blobs.Get(ctx, doc.StorageKey)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fmt.Errorf("%w: document content missing", common.ErrIntegrity)
			}
			return nil, err
		}
	}

	dataKey, err := s.keys.Unwrap(&cryptox.WrappedKey{
		Version: doc.KeyVersion,
		Sealed:  cryptox.Sealed{Ciphertext: doc.EncryptedDataKey, IV: doc.DataKeyIV, Tag: doc.DataKeyTag},
	})
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dataKey)

	return cryptox.Decrypt(&cryptox.Sealed{Ciphertext: ciphertext, IV: doc.ContentIV, Tag: doc.ContentTag}, dataKey)
}

// Delete hard-deletes a document and its grants. The delete audit row is
// written in the same transaction and survives the document. Only the owner
// may delete; an empty requester is unrestricted.
func (s *VaultService) Delete(ctx context.Context, documentID, requesterID string) error {
	if !validID(documentID) {
		return common.ErrorNotFound
	}

	storageKey, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		if err := s.requireOwner(ctx, tx, documentID, requesterID); err != nil {
			return "", err
		}
		doc, err := s.repomanager.Documents(tx).Get(ctx, documentID)
		if err != nil {
			return "", err
		}
		entry := &models.AuditEntry{DocumentID: doc.ID, UserID: requesterID, Action: models.AuditDelete}
		if err := s.repomanager.Audit(tx).Append(ctx, entry); err != nil {
			return "", fmt.Errorf("error writing audit: %w", err)
		}
		if err := s.repomanager.Documents(tx).Delete(ctx, doc.ID); err != nil {
			return "", err
		}
		return doc.StorageKey, nil
	})
	if err != nil {
		return err
	}

	if storageKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, storageKey); err != nil {
			s.log.Error(ctx, "failed to delete vault object", "document_id", documentID, "key", storageKey, "error", err)
		}
	}
	s.observe(models.AuditDelete)
	s.log.Info(ctx, "document deleted", "document_id", documentID)
	return nil
}

// List returns metadata of documents userID holds a grant on. Listing does
// not touch content and is not audited.
func (s *VaultService) List(ctx context.Context, userID string) ([]*models.VaultDocument, error) {
	return s.repomanager.Documents(s.db).ListForUser(ctx, userID)
}

// Share grants granteeID a role on a document. Only the owner may share.
// An owner grant is never downgraded, so a document always keeps its owner.
func (s *VaultService) Share(ctx context.Context, documentID, requesterID, granteeID string, role models.Role) error {
	switch role {
	case models.RoleEditor, models.RoleViewer, models.RoleOwner:
	default:
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}
	if granteeID == "" {
		return fmt.Errorf("%w: grantee is required", common.ErrValidation)
	}
	if !validID(documentID) {
		return common.ErrorNotFound
	}
	if err := s.requireOwner(ctx, s.db, documentID, requesterID); err != nil {
		return err
	}
	current, err := s.repomanager.Access(s.db).Get(ctx, documentID, granteeID)
	switch {
	case err == nil:
		if current.Role == models.RoleOwner && role != models.RoleOwner {
			return fmt.Errorf("%w: owner grant of %s cannot be downgraded", common.ErrConflict, granteeID)
		}
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}
	return s.repomanager.Access(s.db).Grant(ctx, &models.AccessGrant{DocumentID: documentID, UserID: granteeID, Role: role})
}

// Audit returns the audit trail of a document to its owner.
func (s *VaultService) Audit(ctx context.Context, documentID, requesterID string) ([]*models.AuditEntry, error) {
	if !validID(documentID) {
		return nil, common.ErrorNotFound
	}
	if err := s.requireOwner(ctx, s.db, documentID, requesterID); err != nil {
		return nil, err
	}
	return s.repomanager.Audit(s.db).ListByDocument(ctx, documentID)
}

func (s *VaultService) requireOwner(ctx context.Context, db dbx.DBTX, documentID, requesterID string) error {
	if requesterID == "" {
		return nil
	}
	grant, err := s.repomanager.Access(db).Get(ctx, documentID, requesterID)
	if err != nil {
		return err
	}
	if grant.Role != models.RoleOwner {
		return common.ErrForbidden
	}
	return nil
}

// validID reports whether id can be a primary key at all. Anything else is
// treated as a missing record.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
