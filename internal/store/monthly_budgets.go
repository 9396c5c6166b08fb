package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"paragon-backend/internal/models"
)

// GetMonthlyBudget loads the limit for one calendar month, (nil, nil) when
// none is set.
func (d *DB) GetMonthlyBudget(ctx context.Context, budgetID *uint, month, year int) (*models.MonthlyBudget, error) {
	q := d.gorm.WithContext(ctx).Where("month = ? AND year = ?", month, year)
	if budgetID != nil {
		q = q.Where("budget_id = ?", *budgetID)
	} else {
		q = q.Where("budget_id IS NULL")
	}
	var mb models.MonthlyBudget
	err := q.First(&mb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mb, nil
}

// UpsertMonthlyBudget creates or updates the limit for one calendar month.
func (d *DB) UpsertMonthlyBudget(ctx context.Context, budgetID *uint, month, year int, amount float64) (*models.MonthlyBudget, error) {
	existing, err := d.GetMonthlyBudget(ctx, budgetID, month, year)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		mb := &models.MonthlyBudget{Month: month, Year: year, Amount: amount, BudgetID: budgetID}
		if err := d.gorm.WithContext(ctx).Create(mb).Error; err != nil {
			return nil, err
		}
		return mb, nil
	}
	existing.Amount = amount
	if err := d.gorm.WithContext(ctx).Model(existing).Update("amount", amount).Error; err != nil {
		return nil, err
	}
	return existing, nil
}
