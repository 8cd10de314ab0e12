package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/dbx"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fullColumns = `d.id, d.name, d.mime_type, d.size_bytes, d.description, d.type, d.owner_id,
	d.key_version, d.encrypted_data_key, d.data_key_iv, d.data_key_tag,
	d.content_iv, d.content_tag, d.ciphertext, d.storage_key, d.created_at`

func (r *PostgresRepository) Create(ctx context.Context, doc *models.VaultDocument) error {
	query :=
		`INSERT INTO vault_documents (id, name, mime_type, size_bytes, description, type, owner_id,
			key_version, encrypted_data_key, data_key_iv, data_key_tag,
			content_iv, content_tag, ciphertext, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at`

	var ciphertext []byte
	var storageKey sql.NullString
	if doc.StorageKey != "" {
		storageKey = sql.NullString{String: doc.StorageKey, Valid: true}
	} else {
		ciphertext = doc.Ciphertext
		if ciphertext == nil {
			ciphertext = []byte{}
		}
	}

	err := r.db.QueryRowContext(ctx, query,
		doc.ID, doc.Name, doc.MimeType, doc.SizeBytes, doc.Description, doc.Type, doc.OwnerID,
		doc.KeyVersion, doc.EncryptedDataKey, doc.DataKeyIV, doc.DataKeyTag,
		doc.ContentIV, doc.ContentTag, ciphertext, storageKey,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.VaultDocument, error) {
	query := `SELECT ` + fullColumns + ` FROM vault_documents d WHERE d.id = $1`
	return scanFull(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUser(ctx context.Context, id, userID string) (*models.VaultDocument, error) {
	query := `SELECT ` + fullColumns + ` FROM vault_documents d
		 JOIN vault_document_access a ON a.document_id = d.id
		 WHERE d.id = $1 AND a.user_id = $2`
	return scanFull(r.db.QueryRowContext(ctx, query, id, userID))
}

func scanFull(row *sql.Row) (*models.VaultDocument, error) {
	d := &models.VaultDocument{}
	var storageKey sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.MimeType, &d.SizeBytes, &d.Description, &d.Type, &d.OwnerID,
		&d.KeyVersion, &d.EncryptedDataKey, &d.DataKeyIV, &d.DataKeyTag,
		&d.ContentIV, &d.ContentTag, &d.Ciphertext, &storageKey, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	d.StorageKey = storageKey.String
	return d, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.VaultDocument, error) {
	query :=
		`SELECT d.id, d.name, d.mime_type, d.size_bytes, d.description, d.type, d.owner_id, d.key_version, d.created_at
		 FROM vault_documents d
		 JOIN vault_document_access a ON a.document_id = d.id
		 WHERE a.user_id = $1
		 ORDER BY d.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.VaultDocument
	for rows.Next() {
		d := &models.VaultDocument{}
		if err := rows.Scan(&d.ID, &d.Name, &d.MimeType, &d.SizeBytes, &d.Description, &d.Type,
			&d.OwnerID, &d.KeyVersion, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Delete removes the document row; access grants go with it through the
// foreign key, audit rows stay.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
