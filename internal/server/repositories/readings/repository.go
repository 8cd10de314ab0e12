package readings

import (
	"context"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

// Repository is append-only, like the readings themselves.
type Repository interface {
	Add(ctx context.Context, r *models.HealthReading) (*models.HealthReading, error)
	// Recent returns readings taken at or after since, most recent first.
	Recent(ctx context.Context, userID string, since time.Time, limit int) ([]*models.HealthReading, error)
}
