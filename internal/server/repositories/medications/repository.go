package medications

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Medication) (*models.Medication, error)
	Get(ctx context.Context, id string) (*models.Medication, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Medication, error)
	Delete(ctx context.Context, id, userID string) error
}
