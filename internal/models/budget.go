package models

import "time"

// Budget is a multi-tenant household container. The ingestion pipeline does
// not exercise budgets; transactions carry an optional budget_id so sharing
// can be layered on later without a schema change.
type Budget struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	OwnerID   *uint     `gorm:"index" json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Members        []BudgetMember  `gorm:"foreignKey:BudgetID" json:"members,omitempty"`
	MonthlyBudgets []MonthlyBudget `gorm:"foreignKey:BudgetID" json:"-"`
}

// BudgetMemberRole controls what a member may do inside a shared budget.
type BudgetMemberRole string

const (
	RoleOwner  BudgetMemberRole = "owner"
	RoleEditor BudgetMemberRole = "editor"
	RoleViewer BudgetMemberRole = "viewer"
)

// BudgetMember links a user to a budget with a role.
type BudgetMember struct {
	ID       uint             `gorm:"primaryKey" json:"id"`
	BudgetID uint             `gorm:"index;not null" json:"budget_id"`
	UserID   uint             `gorm:"index;not null" json:"user_id"`
	Role     BudgetMemberRole `gorm:"default:viewer" json:"role"`
}

// MonthlyBudget is a spending limit for one calendar month.
type MonthlyBudget struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Month    int     `gorm:"index;not null" json:"month"`
	Year     int     `gorm:"index;not null" json:"year"`
	Amount   float64 `gorm:"default:0" json:"amount"`
	BudgetID *uint   `gorm:"index" json:"budget_id,omitempty"`
}
