package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"gorm.io/gorm"
)

// FetchModel loads one record by id. Branch scoping is applied by the
// branch guard plugin from ctx; admins see every branch.
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	var result T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, association := range associations {
		dbCtx = dbCtx.Preload(association)
	}
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// FetchAllModels loads every record visible to the acting user.
func FetchAllModels[T any](ctx context.Context, associations ...string) ([]*T, error) {
	var results []*T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, association := range associations {
		dbCtx = dbCtx.Preload(association)
	}
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
