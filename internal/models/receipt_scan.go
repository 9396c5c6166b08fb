package models

import "time"

// ScanStatus is the state of one ingestion attempt.
type ScanStatus string

const (
	// ScanStatusProcessing means the parse job is queued or running.
	ScanStatusProcessing ScanStatus = "processing"
	// ScanStatusDone means the receipt was parsed and committed.
	ScanStatusDone ScanStatus = "done"
	// ScanStatusError means the parse failed; the scan can be retried while
	// its image is still on disk.
	ScanStatusError ScanStatus = "error"
	// ScanStatusNeedsReview is reserved for manual triage; the pipeline
	// never produces it.
	ScanStatusNeedsReview ScanStatus = "needs_review"
)

// ReceiptScan tracks one ingestion attempt for an uploaded image. ImagePath
// is cleared after successful processing; ContentHash is the SHA-256 of the
// uploaded bytes and drives per-user duplicate detection.
type ReceiptScan struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TransactionID uint       `gorm:"uniqueIndex;not null" json:"transaction_id"`
	ImagePath     *string    `json:"image_path,omitempty"`
	Status        ScanStatus `gorm:"default:processing" json:"status"`
	ContentHash   string     `gorm:"index;not null" json:"content_hash"`
	CreatedAt     time.Time  `json:"created_at"`
}
