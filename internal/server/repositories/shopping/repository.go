package shopping

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.ShoppingItem) (*models.ShoppingItem, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ShoppingItem, error)
	SetDone(ctx context.Context, id, userID string, done bool) (*models.ShoppingItem, error)
	Delete(ctx context.Context, id, userID string) error
}
