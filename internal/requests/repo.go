package requests

import (
	"context"

	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Mutation inspects the locked row and returns the column updates to apply.
// Returning an error aborts the transaction.
type Mutation func(current *models.LicenseRequest) (map[string]any, error)

// Repository persists license requests. It holds no workflow rules.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license request repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new request row.
func (r *Repository) Create(ctx context.Context, req *models.LicenseRequest) (*models.LicenseRequest, error) {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// List returns every request, newest first. The id tie-break keeps the
// order stable across reads.
func (r *Repository) List(ctx context.Context) ([]models.LicenseRequest, error) {
	var rows []models.LicenseRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LicenseRequest, error) {
	var row models.LicenseRequest
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Mutate loads the row under a write lock, applies fn's updates in the same
// transaction and returns the row as committed.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn Mutation) (*models.LicenseRequest, error) {
	var out models.LicenseRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == config.DBDriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current models.LicenseRequest
		if err := q.First(&current, "id = ?", id).Error; err != nil {
			return err
		}

		updates, err := fn(&current)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.LicenseRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}

		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
