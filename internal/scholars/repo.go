package scholars

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iskolarlink/iskolarlink-backend/internal/repo"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// Scholar is the directory view of a verified scholar account.
type Scholar struct {
	ID        uuid.UUID
	FullName  string
	BatchYear string
}

// Repository reads scholars from the users table.
type Repository struct {
	repo.Base
}

// NewRepository constructs a scholar directory bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) verified(ctx context.Context) *gorm.DB {
	return r.DB(ctx).
		Model(&models.User{}).
		Select("id", "full_name", "batch_year").
		Where("role = ? AND verified = ?", enums.UserRoleScholar, true)
}

// FindVerifiedScholars lists every verified scholar ordered by name.
func (r *Repository) FindVerifiedScholars(ctx context.Context) ([]Scholar, error) {
	var users []models.User
	if err := r.verified(ctx).Order("full_name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]Scholar, 0, len(users))
	for _, u := range users {
		out = append(out, fromUser(u))
	}
	return out, nil
}

// FindVerifiedScholarByID returns nil without error when the id is unknown, belongs to
// an admin, or the scholar is not verified yet.
func (r *Repository) FindVerifiedScholarByID(ctx context.Context, id uuid.UUID) (*Scholar, error) {
	var user models.User
	err := r.verified(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scholar := fromUser(user)
	return &scholar, nil
}

// ResolveNames maps user ids to display names. Unknown ids are left out.
func (r *Repository) ResolveNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := r.DB(ctx).Model(&models.User{}).Select("id", "full_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}

func fromUser(u models.User) Scholar {
	return Scholar{ID: u.ID, FullName: u.FullName, BatchYear: u.BatchYear}
}
