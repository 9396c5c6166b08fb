package models

import "time"

// User is an account that can upload receipts and own budgets.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Transactions []Transaction `gorm:"foreignKey:UploadedBy" json:"-"`
	OwnedBudgets []Budget      `gorm:"foreignKey:OwnerID" json:"-"`
}
