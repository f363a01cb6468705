package repository

import (
	"context"

	"github.com/njaeplume/plume/internal/identity/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert keeps created_at from the first sighting and never blanks a known field.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "email"}, Value: gorm.Expr("CASE WHEN ? <> '' THEN ? ELSE users.email END", user.Email, user.Email)},
			{Column: clause.Column{Name: "full_name"}, Value: gorm.Expr("CASE WHEN ? <> '' THEN ? ELSE users.full_name END", user.FullName, user.FullName)},
			{Column: clause.Column{Name: "updated_at"}, Value: user.UpdatedAt},
		},
	}).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}
