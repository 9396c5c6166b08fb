package models

import "time"

// TransactionType classifies a financial event.
type TransactionType string

const (
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeTransfer TransactionType = "transfer"
)

// PlaceholderMerchant is the merchant name a transaction carries while its
// receipt is still being parsed.
const PlaceholderMerchant = "Processing..."

// Transaction is one financial event, either parsed from a receipt image or
// entered manually. A non-manual transaction owns at most one ReceiptScan;
// a manual transaction never has one.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	MerchantName string          `gorm:"index;not null" json:"merchant_name"`
	Date         *time.Time      `json:"date,omitempty"`
	TotalAmount  float64         `gorm:"default:0" json:"total_amount"`
	Currency     string          `gorm:"default:PLN" json:"currency"`
	IsManual     bool            `gorm:"default:false" json:"is_manual"`
	Type         TransactionType `gorm:"default:expense" json:"type"`
	UploadedBy   uint            `gorm:"index;not null" json:"uploaded_by"`
	BudgetID     *uint           `gorm:"index" json:"budget_id,omitempty"`
	CategoryID   *uint           `json:"category_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	Lines    []TransactionLine `gorm:"foreignKey:TransactionID" json:"lines"`
	Scan     *ReceiptScan      `gorm:"foreignKey:TransactionID" json:"scan,omitempty"`
	Category *Category         `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags     []Tag             `gorm:"many2many:transaction_tags" json:"tags,omitempty"`
}

// TransactionLine is one parsed or manually entered item on a transaction.
type TransactionLine struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	TransactionID uint    `gorm:"index;not null" json:"transaction_id"`
	Name          string  `gorm:"not null" json:"name"`
	Price         float64 `gorm:"not null" json:"price"`
	Quantity      float64 `gorm:"default:1" json:"quantity"`
	CategoryID    *uint   `json:"category_id,omitempty"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
