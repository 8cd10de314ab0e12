package audit

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

// Repository is append-only: there is no update or delete.
type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	ListByDocument(ctx context.Context, documentID string) ([]*models.AuditEntry, error)
}
