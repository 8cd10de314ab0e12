package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
)

// CareService holds the small per-user lists: medications, shopping items
// and emergency contacts.
type CareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCareService(db *sql.DB, m repomanager.RepositoryManager) *CareService {
	return &CareService{db: db, repomanager: m}
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	}
	return v, nil
}

func (s *CareService) CreateMedication(ctx context.Context, userID string, m *models.Medication) (*models.Medication, error) {
	name, err := required("name", m.Name)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Medications(s.db).Create(ctx, &models.Medication{
		UserID: userID,
		Name:   name,
		Dosage: strings.TrimSpace(m.Dosage),
		Notes:  m.Notes,
	})
}

func (s *CareService) ListMedications(ctx context.Context, userID string) ([]*models.Medication, error) {
	return s.repomanager.Medications(s.db).ListByUser(ctx, userID)
}

func (s *CareService) DeleteMedication(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return s.repomanager.Medications(s.db).Delete(ctx, id, userID)
}

func (s *CareService) AddShoppingItem(ctx context.Context, userID, name, quantity string) (*models.ShoppingItem, error) {
	name, err := required("name", name)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Shopping(s.db).Create(ctx, &models.ShoppingItem{
		UserID:   userID,
		Name:     name,
		Quantity: strings.TrimSpace(quantity),
	})
}

func (s *CareService) ListShopping(ctx context.Context, userID string) ([]*models.ShoppingItem, error) {
	return s.repomanager.Shopping(s.db).ListByUser(ctx, userID)
}

func (s *CareService) SetShoppingDone(ctx context.Context, id, userID string, done bool) (*models.ShoppingItem, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Shopping(s.db).SetDone(ctx, id, userID, done)
}

func (s *CareService) DeleteShoppingItem(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return s.repomanager.Shopping(s.db).Delete(ctx, id, userID)
}

func (s *CareService) AddContact(ctx context.Context, userID string, c *models.EmergencyContact) (*models.EmergencyContact, error) {
	name, err := required("name", c.Name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Phone) == "" && strings.TrimSpace(c.Email) == "" {
		return nil, fmt.Errorf("%w: phone or email is required", common.ErrValidation)
	}
	return s.repomanager.Contacts(s.db).Create(ctx, &models.EmergencyContact{
		UserID:   userID,
		Name:     name,
		Relation: strings.TrimSpace(c.Relation),
		Phone:    strings.TrimSpace(c.Phone),
		Email:    strings.TrimSpace(c.Email),
	})
}

func (s *CareService) ListContacts(ctx context.Context, userID string) ([]*models.EmergencyContact, error) {
	return s.repomanager.Contacts(s.db).ListByUser(ctx, userID)
}

func (s *CareService) DeleteContact(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return s.repomanager.Contacts(s.db).Delete(ctx, id, userID)
}
