package documents

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.VaultDocument) error
	// Get loads a document regardless of grants.
	Get(ctx context.Context, id string) (*models.VaultDocument, error)
	// GetForUser loads a document only if userID holds a grant on it. A
	// missing document and a missing grant are both common.ErrorNotFound.
	GetForUser(ctx context.Context, id, userID string) (*models.VaultDocument, error)
	// ListForUser returns metadata (no key or content columns) of every
	// document userID holds a grant on, newest first.
	ListForUser(ctx context.Context, userID string) ([]*models.VaultDocument, error)
	Delete(ctx context.Context, id string) error
}
