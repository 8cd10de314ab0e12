package contacts

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.EmergencyContact) (*models.EmergencyContact, error)
	ListByUser(ctx context.Context, userID string) ([]*models.EmergencyContact, error)
	Delete(ctx context.Context, id, userID string) error
}
