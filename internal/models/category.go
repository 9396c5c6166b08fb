package models

// Category classifies transactions and lines. Categories form a tree via
// ParentID. System categories (IsSystem) are visible to everyone; the rest
// are owned by a single user.
type Category struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"index;not null" json:"name"`
	ParentID *uint  `json:"parent_id,omitempty"`
	UserID   *uint  `gorm:"index" json:"user_id,omitempty"`
	IsSystem bool   `gorm:"default:false" json:"is_system"`

	Parent   *Category  `gorm:"foreignKey:ParentID" json:"-"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// Tag is a free-form label attached to transactions.
type Tag struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"index;not null" json:"name"`
	UserID   *uint  `gorm:"index" json:"user_id,omitempty"`
	IsSystem bool   `gorm:"default:false" json:"is_system"`
}
