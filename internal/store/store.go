package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"paragon-backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// DB wraps a gorm connection pool. Every operation opens its own session
// from the pool, so background workers are independent of any request
// lifetime.
type DB struct {
	gorm *gorm.DB
}

// Open connects to Postgres and returns a store handle.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return &DB{gorm: db}, nil
}

// New wraps an existing gorm handle. Tests use this with an in-memory
// SQLite database.
func New(db *gorm.DB) *DB {
	return &DB{gorm: db}
}

// AutoMigrate creates or updates the schema for all entities.
func (d *DB) AutoMigrate() error {
	return d.gorm.AutoMigrate(
		&models.User{},
		&models.Budget{},
		&models.BudgetMember{},
		&models.MonthlyBudget{},
		&models.Category{},
		&models.Tag{},
		&models.Transaction{},
		&models.TransactionLine{},
		&models.ReceiptScan{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
