package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Small generic CRUD helpers shared by the user and snapshot tables. They
// take the raw *gorm.DB so a transaction can be passed in place of the store.

// getByField returns the first T whose column equals value. A missing row
// becomes notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, column string, value any, notFoundErr error) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where(column+" = ?", value).First(&row).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &row, nil
}

// listAll returns every row of T, ordered by column when one is given.
func listAll[T any](db *gorm.DB, ctx context.Context, orderBy ...string) ([]*T, error) {
	rows := []*T{}
	q := db.WithContext(ctx)
	for _, col := range orderBy {
		q = q.Order(col)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// createWithID inserts entity, assigning a fresh uuid through setID when
// currentID is empty. A unique-constraint violation becomes dupErr.
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, setID func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.NewString()
		setID(entity, id)
	}
	err := db.WithContext(ctx).Create(entity).Error
	switch {
	case err == nil:
		return id, nil
	case isUniqueConstraintError(err):
		return "", dupErr
	default:
		return "", err
	}
}

// deleteByField removes the rows of T whose column equals value, or returns
// notFoundErr when there were none.
func deleteByField[T any](db *gorm.DB, ctx context.Context, column string, value any, notFoundErr error) error {
	res := db.WithContext(ctx).Where(column+" = ?", value).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
