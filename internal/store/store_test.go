package store

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paragon-backend/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	g, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db := New(g)
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createUploaded(t *testing.T, db *DB, userID uint, hash string) (*models.Transaction, *models.ReceiptScan) {
	t.Helper()
	path := "static/uploads/" + hash + ".jpg"
	tx := &models.Transaction{
		MerchantName: models.PlaceholderMerchant,
		Currency:     "PLN",
		Type:         models.TransactionTypeExpense,
		UploadedBy:   userID,
	}
	scan := &models.ReceiptScan{
		ImagePath:   &path,
		Status:      models.ScanStatusProcessing,
		ContentHash: hash,
	}
	if err := db.CreateUploadedTransaction(context.Background(), tx, scan); err != nil {
		t.Fatalf("create uploaded transaction: %v", err)
	}
	return tx, scan
}

func TestCreateUploadedTransaction(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")

	tx, scan := createUploaded(t, db, user.ID, "hash-1")

	if tx.ID == 0 || scan.ID == 0 {
		t.Fatal("expected ids to be assigned")
	}
	if scan.TransactionID != tx.ID {
		t.Errorf("scan.TransactionID = %d, want %d", scan.TransactionID, tx.ID)
	}

	got, err := db.GetTransaction(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Scan == nil {
		t.Fatal("expected scan to be preloaded")
	}
	if got.Scan.Status != models.ScanStatusProcessing {
		t.Errorf("scan status = %q, want %q", got.Scan.Status, models.ScanStatusProcessing)
	}
	if got.MerchantName != models.PlaceholderMerchant {
		t.Errorf("merchant = %q, want placeholder", got.MerchantName)
	}
}

func TestFindDuplicateScan(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	_, aliceScan := createUploaded(t, db, alice.ID, "shared-hash")

	t.Run("hit for same user", func(t *testing.T) {
		dup, err := db.FindDuplicateScan(ctx, alice.ID, "shared-hash")
		if err != nil {
			t.Fatalf("find duplicate: %v", err)
		}
		if dup == nil {
			t.Fatal("expected a duplicate")
		}
		if dup.ID != aliceScan.ID {
			t.Errorf("dup.ID = %d, want %d", dup.ID, aliceScan.ID)
		}
	})

	t.Run("miss for other user", func(t *testing.T) {
		dup, err := db.FindDuplicateScan(ctx, bob.ID, "shared-hash")
		if err != nil {
			t.Fatalf("find duplicate: %v", err)
		}
		if dup != nil {
			t.Errorf("expected no duplicate across users, got scan %d", dup.ID)
		}
	})

	t.Run("miss for other hash", func(t *testing.T) {
		dup, err := db.FindDuplicateScan(ctx, alice.ID, "other-hash")
		if err != nil {
			t.Fatalf("find duplicate: %v", err)
		}
		if dup != nil {
			t.Errorf("expected no duplicate, got scan %d", dup.ID)
		}
	})
}

func TestCompleteScan(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, scan := createUploaded(t, db, user.ID, "hash-1")

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	result := CompletedExtraction{
		MerchantName: "Biedronka",
		Date:         &date,
		TotalAmount:  42.50,
		Currency:     "PLN",
	}
	lines := []models.TransactionLine{
		{Name: "Milk", Price: 3.50, Quantity: 2},
		{Name: "Bread", Price: 5.00, Quantity: 1},
	}
	if err := db.CompleteScan(ctx, scan.ID, tx.ID, result, lines); err != nil {
		t.Fatalf("complete scan: %v", err)
	}

	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.MerchantName != "Biedronka" {
		t.Errorf("merchant = %q, want Biedronka", got.MerchantName)
	}
	if got.TotalAmount != 42.50 {
		t.Errorf("total = %v, want 42.50", got.TotalAmount)
	}
	if got.Date == nil || !got.Date.Equal(date) {
		t.Errorf("date = %v, want %v", got.Date, date)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(got.Lines))
	}
	if got.Scan.Status != models.ScanStatusDone {
		t.Errorf("scan status = %q, want done", got.Scan.Status)
	}
	if got.Scan.ImagePath != nil {
		t.Errorf("image path = %v, want cleared", *got.Scan.ImagePath)
	}
}

func TestCompleteScanWithoutDate(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, scan := createUploaded(t, db, user.ID, "hash-1")

	result := CompletedExtraction{MerchantName: "Kiosk", TotalAmount: 10, Currency: "PLN"}
	if err := db.CompleteScan(ctx, scan.ID, tx.ID, result, nil); err != nil {
		t.Fatalf("complete scan: %v", err)
	}

	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Date != nil {
		t.Errorf("date = %v, want untouched nil", got.Date)
	}
	if got.Scan.Status != models.ScanStatusDone {
		t.Errorf("scan status = %q, want done", got.Scan.Status)
	}
}

func TestMarkScanErrorWithPartial(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, scan := createUploaded(t, db, user.ID, "hash-1")

	partial := PartialExtraction{MerchantName: "Unknown", TotalAmount: 0, Currency: "PLN"}
	if err := db.MarkScanErrorWithPartial(ctx, scan.ID, tx.ID, partial); err != nil {
		t.Fatalf("mark error with partial: %v", err)
	}

	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.MerchantName != "Unknown" {
		t.Errorf("merchant = %q, want Unknown", got.MerchantName)
	}
	if len(got.Lines) != 0 {
		t.Errorf("lines = %d, want 0 after validation failure", len(got.Lines))
	}
	if got.Scan.Status != models.ScanStatusError {
		t.Errorf("scan status = %q, want error", got.Scan.Status)
	}
	if got.Scan.ImagePath == nil {
		t.Error("image path should survive a failed parse for retry")
	}
}

func TestMarkScanNotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.MarkScanError(context.Background(), 9999); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, scan := createUploaded(t, db, user.ID, "hash-1")
	if err := db.CompleteScan(ctx, scan.ID, tx.ID, CompletedExtraction{
		MerchantName: "Store", TotalAmount: 20, Currency: "PLN",
	}, []models.TransactionLine{{Name: "Item", Price: 20, Quantity: 1}}); err != nil {
		t.Fatalf("complete scan: %v", err)
	}

	if err := db.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}

	if _, err := db.GetTransaction(ctx, tx.ID); err != ErrNotFound {
		t.Errorf("get deleted transaction err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetScanByTransaction(ctx, tx.ID); err != ErrNotFound {
		t.Errorf("get deleted scan err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetTransactionLine(ctx, tx.ID, 1); err != ErrNotFound {
		t.Errorf("get deleted line err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteTransaction(context.Background(), 9999); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTransactionPatch(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, _ := createUploaded(t, db, user.ID, "hash-1")

	merchant := "Lidl"
	total := 99.99
	if err := db.UpdateTransaction(ctx, tx.ID, TransactionPatch{
		MerchantName: &merchant,
		TotalAmount:  &total,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.MerchantName != "Lidl" || got.TotalAmount != 99.99 {
		t.Errorf("got merchant=%q total=%v", got.MerchantName, got.TotalAmount)
	}
	// Unpatched fields stay put.
	if got.Currency != "PLN" {
		t.Errorf("currency = %q, want PLN", got.Currency)
	}
}

func TestUpdateTransactionLineScopedToTransaction(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tx, scan := createUploaded(t, db, user.ID, "hash-1")
	if err := db.CompleteScan(ctx, scan.ID, tx.ID, CompletedExtraction{
		MerchantName: "Store", TotalAmount: 5, Currency: "PLN",
	}, []models.TransactionLine{{Name: "Item", Price: 5, Quantity: 1}}); err != nil {
		t.Fatalf("complete scan: %v", err)
	}
	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	lineID := got.Lines[0].ID

	name := "Renamed"
	if err := db.UpdateTransactionLine(ctx, tx.ID+1, lineID, LinePatch{Name: &name}); err != ErrNotFound {
		t.Errorf("cross-transaction patch err = %v, want ErrNotFound", err)
	}
	if err := db.UpdateTransactionLine(ctx, tx.ID, lineID, LinePatch{Name: &name}); err != nil {
		t.Fatalf("patch line: %v", err)
	}

	line, err := db.GetTransactionLine(ctx, tx.ID, lineID)
	if err != nil {
		t.Fatalf("get line: %v", err)
	}
	if line.Name != "Renamed" {
		t.Errorf("line name = %q, want Renamed", line.Name)
	}
}

func TestFindCategoryByName(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	system := &models.Category{Name: "Food", IsSystem: true}
	if err := db.CreateCategory(ctx, system); err != nil {
		t.Fatalf("create system category: %v", err)
	}
	aliceOwn := &models.Category{Name: "Food", UserID: &alice.ID}
	if err := db.CreateCategory(ctx, aliceOwn); err != nil {
		t.Fatalf("create user category: %v", err)
	}
	bobOwn := &models.Category{Name: "Hobby", UserID: &bob.ID}
	if err := db.CreateCategory(ctx, bobOwn); err != nil {
		t.Fatalf("create user category: %v", err)
	}

	t.Run("lowest id wins on collision", func(t *testing.T) {
		cat, err := db.FindCategoryByName(ctx, alice.ID, "Food")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if cat == nil || cat.ID != system.ID {
			t.Errorf("got %+v, want system category %d", cat, system.ID)
		}
	})

	t.Run("other user's category invisible", func(t *testing.T) {
		cat, err := db.FindCategoryByName(ctx, alice.ID, "Hobby")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if cat != nil {
			t.Errorf("expected miss, got %+v", cat)
		}
	})

	t.Run("miss is not an error", func(t *testing.T) {
		cat, err := db.FindCategoryByName(ctx, alice.ID, "Nope")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if cat != nil {
			t.Errorf("expected nil, got %+v", cat)
		}
	})
}

func TestRenameCategoryOwnershipOnly(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	system := &models.Category{Name: "Food", IsSystem: true}
	if err := db.CreateCategory(ctx, system); err != nil {
		t.Fatalf("create system category: %v", err)
	}
	own := &models.Category{Name: "Hobby", UserID: &user.ID}
	if err := db.CreateCategory(ctx, own); err != nil {
		t.Fatalf("create user category: %v", err)
	}

	if err := db.RenameCategory(ctx, user.ID, system.ID, "Hacked"); err != ErrNotFound {
		t.Errorf("renaming a system category err = %v, want ErrNotFound", err)
	}
	if err := db.RenameCategory(ctx, user.ID, own.ID, "Hobbies"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	cat, err := db.FindCategoryByName(ctx, user.ID, "Hobbies")
	if err != nil || cat == nil {
		t.Fatalf("renamed category not found: %v", err)
	}
}

func TestSeedSystemCategoriesIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	names := []string{"Food", "Transport", "Other"}
	if err := db.SeedSystemCategories(ctx, names); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.SeedSystemCategories(ctx, names); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	cats, err := db.ListCategories(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 3 {
		t.Errorf("categories = %d, want 3", len(cats))
	}
}

func TestCreateManualTransactionWithTags(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "a@example.com")
	ctx := context.Background()

	tag := &models.Tag{Name: "groceries", UserID: &user.ID}
	if err := db.CreateTag(ctx, tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	now := time.Now()
	tx := &models.Transaction{
		MerchantName: "Market",
		Date:         &now,
		TotalAmount:  15,
		Currency:     "PLN",
		IsManual:     true,
		Type:         models.TransactionTypeExpense,
		UploadedBy:   user.ID,
	}
	lines := []models.TransactionLine{{Name: "Apples", Price: 15, Quantity: 1}}
	if err := db.CreateManualTransaction(ctx, tx, lines, []uint{tag.ID}); err != nil {
		t.Fatalf("create manual: %v", err)
	}

	got, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !got.IsManual {
		t.Error("expected manual flag")
	}
	if got.Scan != nil {
		t.Error("manual transaction must not have a scan")
	}
	if len(got.Lines) != 1 {
		t.Errorf("lines = %d, want 1", len(got.Lines))
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "groceries" {
		t.Errorf("tags = %+v, want [groceries]", got.Tags)
	}
}

func TestListTransactionsScopedToUser(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	ctx := context.Background()

	createUploaded(t, db, alice.ID, "h1")
	createUploaded(t, db, alice.ID, "h2")
	createUploaded(t, db, bob.ID, "h3")

	txs, err := db.ListTransactions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("transactions = %d, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.UploadedBy != alice.ID {
			t.Errorf("leaked transaction %d owned by %d", tx.ID, tx.UploadedBy)
		}
	}
}
