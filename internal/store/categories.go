package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"paragon-backend/internal/models"
)

// FindCategoryByName resolves a category name to a category visible to the
// user (system-wide or owned). Exact match only; when several categories
// share a name the lowest id wins, deterministically. Returns (nil, nil) on
// a miss — an unmatched name is never an error.
func (d *DB) FindCategoryByName(ctx context.Context, userID uint, name string) (*models.Category, error) {
	var cat models.Category
	err := d.gorm.WithContext(ctx).
		Where("name = ? AND (is_system = ? OR user_id = ?)", name, true, userID).
		Order("id").
		First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListCategories returns the categories visible to the user.
func (d *DB) ListCategories(ctx context.Context, userID uint) ([]models.Category, error) {
	var cats []models.Category
	err := d.gorm.WithContext(ctx).
		Where("is_system = ? OR user_id = ?", true, userID).
		Order("id").
		Find(&cats).Error
	if err != nil {
		return nil, err
	}
	return cats, nil
}

// CreateCategory persists a category.
func (d *DB) CreateCategory(ctx context.Context, cat *models.Category) error {
	return d.gorm.WithContext(ctx).Create(cat).Error
}

// RenameCategory renames a user-owned category. System categories and other
// users' categories are not touched.
func (d *DB) RenameCategory(ctx context.Context, userID, id uint, name string) error {
	res := d.gorm.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ? AND user_id = ? AND is_system = ?", id, userID, false).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a user-owned category. System categories and other
// users' categories are not touched.
func (d *DB) DeleteCategory(ctx context.Context, userID, id uint) error {
	res := d.gorm.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_system = ?", id, userID, false).
		Delete(&models.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedSystemCategories inserts the built-in categories the parser assigns
// items to. Idempotent: names already present are skipped.
func (d *DB) SeedSystemCategories(ctx context.Context, names []string) error {
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("name = ? AND is_system = ?", name, true).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&models.Category{Name: name, IsSystem: true}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTags returns the tags visible to the user.
func (d *DB) ListTags(ctx context.Context, userID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := d.gorm.WithContext(ctx).
		Where("is_system = ? OR user_id = ?", true, userID).
		Order("id").
		Find(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTag persists a tag.
func (d *DB) CreateTag(ctx context.Context, tag *models.Tag) error {
	return d.gorm.WithContext(ctx).Create(tag).Error
}

// RenameTag renames a user-owned tag.
func (d *DB) RenameTag(ctx context.Context, userID, id uint, name string) error {
	res := d.gorm.WithContext(ctx).
		Model(&models.Tag{}).
		Where("id = ? AND user_id = ? AND is_system = ?", id, userID, false).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTag removes a user-owned tag.
func (d *DB) DeleteTag(ctx context.Context, userID, id uint) error {
	res := d.gorm.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_system = ?", id, userID, false).
		Delete(&models.Tag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
