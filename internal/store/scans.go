package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"paragon-backend/internal/models"
)

// PartialExtraction carries the fields persisted onto a transaction when
// the parser responded but the result failed validation. The user sees what
// was extracted and can correct it manually.
type PartialExtraction struct {
	MerchantName string
	TotalAmount  float64
	Currency     string
}

// CompletedExtraction carries the transaction fields committed on a
// successful parse. Date is nil when the parser supplied none (or an
// unparseable one); the existing date is then left untouched.
type CompletedExtraction struct {
	MerchantName string
	Date         *time.Time
	TotalAmount  float64
	Currency     string
}

// FindDuplicateScan looks up a scan with the same content hash whose owning
// transaction belongs to the given user. Returns (nil, nil) when there is
// no duplicate.
func (d *DB) FindDuplicateScan(ctx context.Context, userID uint, contentHash string) (*models.ReceiptScan, error) {
	var scan models.ReceiptScan
	err := d.gorm.WithContext(ctx).
		Joins("JOIN transactions ON transactions.id = receipt_scans.transaction_id").
		Where("receipt_scans.content_hash = ? AND transactions.uploaded_by = ?", contentHash, userID).
		Order("receipt_scans.id").
		First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

// GetScanByTransaction loads the scan owned by a transaction.
func (d *DB) GetScanByTransaction(ctx context.Context, transactionID uint) (*models.ReceiptScan, error) {
	var scan models.ReceiptScan
	err := d.gorm.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&scan).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &scan, nil
}

// GetScan loads a scan by id.
func (d *DB) GetScan(ctx context.Context, scanID uint) (*models.ReceiptScan, error) {
	var scan models.ReceiptScan
	if err := d.gorm.WithContext(ctx).First(&scan, scanID).Error; err != nil {
		return nil, notFound(err)
	}
	return &scan, nil
}

// MarkScanProcessing flips a scan back to processing. Used by retry.
func (d *DB) MarkScanProcessing(ctx context.Context, scanID uint) error {
	return d.setScanStatus(ctx, scanID, models.ScanStatusProcessing)
}

// MarkScanError records a parser failure. The transaction keeps its
// placeholder data.
func (d *DB) MarkScanError(ctx context.Context, scanID uint) error {
	return d.setScanStatus(ctx, scanID, models.ScanStatusError)
}

func (d *DB) setScanStatus(ctx context.Context, scanID uint, status models.ScanStatus) error {
	res := d.gorm.WithContext(ctx).
		Model(&models.ReceiptScan{}).
		Where("id = ?", scanID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkScanErrorWithPartial records a validation failure: the scan goes to
// error, but the implausible extraction is persisted onto the transaction
// so the user can see and fix it. No lines are created. Both writes commit
// together.
func (d *DB) MarkScanErrorWithPartial(ctx context.Context, scanID, transactionID uint, partial PartialExtraction) error {
	return d.gorm.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Model(&models.ReceiptScan{}).
			Where("id = ?", scanID).
			Update("status", models.ScanStatusError).Error; err != nil {
			return fmt.Errorf("mark scan error: %w", err)
		}
		if err := db.Model(&models.Transaction{}).
			Where("id = ?", transactionID).
			Updates(map[string]interface{}{
				"merchant_name": partial.MerchantName,
				"total_amount":  partial.TotalAmount,
				"currency":      partial.Currency,
			}).Error; err != nil {
			return fmt.Errorf("persist partial extraction: %w", err)
		}
		return nil
	})
}

// CompleteScan commits the terminal success state: transaction fields,
// parsed lines, status=done and the cleared image path all become visible
// at once. No reader can observe a done scan without its lines.
func (d *DB) CompleteScan(ctx context.Context, scanID, transactionID uint, result CompletedExtraction, lines []models.TransactionLine) error {
	return d.gorm.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		updates := map[string]interface{}{
			"merchant_name": result.MerchantName,
			"total_amount":  result.TotalAmount,
			"currency":      result.Currency,
		}
		if result.Date != nil {
			updates["date"] = *result.Date
		}
		if err := db.Model(&models.Transaction{}).
			Where("id = ?", transactionID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		for i := range lines {
			lines[i].TransactionID = transactionID
		}
		if len(lines) > 0 {
			if err := db.Create(&lines).Error; err != nil {
				return fmt.Errorf("create lines: %w", err)
			}
		}
		if err := db.Model(&models.ReceiptScan{}).
			Where("id = ?", scanID).
			Updates(map[string]interface{}{
				"status":     models.ScanStatusDone,
				"image_path": nil,
			}).Error; err != nil {
			return fmt.Errorf("finalize scan: %w", err)
		}
		return nil
	})
}
