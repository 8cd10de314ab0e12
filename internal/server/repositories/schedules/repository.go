package schedules

import (
	"context"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.MedicationSchedule) (*models.MedicationSchedule, error)
	Get(ctx context.Context, id string) (*models.MedicationSchedule, error)
	ListByUser(ctx context.Context, userID string) ([]*models.MedicationSchedule, error)
	Delete(ctx context.Context, id, userID string) error
}
