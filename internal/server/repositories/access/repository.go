package access

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Grant(ctx context.Context, g *models.AccessGrant) error
	// Get returns common.ErrorNotFound when userID has no grant on the document.
	Get(ctx context.Context, documentID, userID string) (*models.AccessGrant, error)
}
