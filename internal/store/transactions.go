package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"paragon-backend/internal/models"
)

// TransactionPatch is an explicit partial update for a transaction. Nil
// fields are left untouched.
type TransactionPatch struct {
	MerchantName *string
	Date         *time.Time
	TotalAmount  *float64
	Currency     *string
	Type         *models.TransactionType
	CategoryID   *uint
}

// LinePatch is an explicit partial update for a transaction line.
type LinePatch struct {
	Name       *string
	Price      *float64
	Quantity   *float64
	CategoryID *uint
}

// CreateUploadedTransaction persists the placeholder transaction and its
// scan row as one atomic unit. This is the synchronous half of ingestion:
// the caller gets both rows back before the parse job runs.
func (d *DB) CreateUploadedTransaction(ctx context.Context, tx *models.Transaction, scan *models.ReceiptScan) error {
	return d.gorm.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		scan.TransactionID = tx.ID
		if err := db.Create(scan).Error; err != nil {
			return fmt.Errorf("create scan: %w", err)
		}
		tx.Scan = scan
		return nil
	})
}

// CreateManualTransaction persists a manual transaction together with its
// lines and tag links.
func (d *DB) CreateManualTransaction(ctx context.Context, tx *models.Transaction, lines []models.TransactionLine, tagIDs []uint) error {
	return d.gorm.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		for i := range lines {
			lines[i].TransactionID = tx.ID
		}
		if len(lines) > 0 {
			if err := db.Create(&lines).Error; err != nil {
				return fmt.Errorf("create lines: %w", err)
			}
		}
		tx.Lines = lines
		if len(tagIDs) > 0 {
			var tags []models.Tag
			if err := db.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
				return fmt.Errorf("load tags: %w", err)
			}
			if err := db.Model(tx).Association("Tags").Append(&tags); err != nil {
				return fmt.Errorf("link tags: %w", err)
			}
		}
		return nil
	})
}

// GetTransaction loads a transaction with its scan, lines, category and
// tags.
func (d *DB) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := d.gorm.WithContext(ctx).
		Preload("Lines").
		Preload("Scan").
		Preload("Category").
		Preload("Tags").
		First(&tx, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

// ListTransactions returns the user's transactions, newest first by date.
func (d *DB) ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := d.gorm.WithContext(ctx).
		Preload("Lines").
		Preload("Scan").
		Preload("Category").
		Preload("Tags").
		Where("uploaded_by = ?", userID).
		Order("date DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// UpdateTransaction applies a patch field by field.
func (d *DB) UpdateTransaction(ctx context.Context, id uint, patch TransactionPatch) error {
	updates := map[string]interface{}{}
	if patch.MerchantName != nil {
		updates["merchant_name"] = *patch.MerchantName
	}
	if patch.Date != nil {
		updates["date"] = *patch.Date
	}
	if patch.TotalAmount != nil {
		updates["total_amount"] = *patch.TotalAmount
	}
	if patch.Currency != nil {
		updates["currency"] = *patch.Currency
	}
	if patch.Type != nil {
		updates["type"] = *patch.Type
	}
	if patch.CategoryID != nil {
		updates["category_id"] = *patch.CategoryID
	}
	if len(updates) == 0 {
		return nil
	}
	res := d.gorm.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransactionLine loads one line, verifying it belongs to the given
// transaction.
func (d *DB) GetTransactionLine(ctx context.Context, transactionID, lineID uint) (*models.TransactionLine, error) {
	var line models.TransactionLine
	err := d.gorm.WithContext(ctx).
		Where("id = ? AND transaction_id = ?", lineID, transactionID).
		First(&line).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

// UpdateTransactionLine applies a patch to one line of a transaction.
func (d *DB) UpdateTransactionLine(ctx context.Context, transactionID, lineID uint, patch LinePatch) error {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Quantity != nil {
		updates["quantity"] = *patch.Quantity
	}
	if patch.CategoryID != nil {
		updates["category_id"] = *patch.CategoryID
	}
	if len(updates) == 0 {
		return nil
	}
	res := d.gorm.WithContext(ctx).
		Model(&models.TransactionLine{}).
		Where("id = ? AND transaction_id = ?", lineID, transactionID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes the transaction, its lines, its scan and its
// tag links as one atomic unit. Partial deletion is never observable.
func (d *DB) DeleteTransaction(ctx context.Context, id uint) error {
	return d.gorm.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Where("transaction_id = ?", id).Delete(&models.TransactionLine{}).Error; err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		if err := db.Where("transaction_id = ?", id).Delete(&models.ReceiptScan{}).Error; err != nil {
			return fmt.Errorf("delete scan: %w", err)
		}
		if err := db.Model(&models.Transaction{ID: id}).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		res := db.Delete(&models.Transaction{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
