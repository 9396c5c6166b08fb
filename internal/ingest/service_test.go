package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"paragon-backend/internal/jobs"
	"paragon-backend/internal/models"
	"paragon-backend/internal/store"
)

type fakeStore struct {
	duplicates   map[string]*models.ReceiptScan
	transactions map[uint]*models.Transaction
	scans        map[uint]*models.ReceiptScan
	categories   map[string]*models.Category

	nextID        uint
	createErr     error
	manualCreated *models.Transaction
	manualLines   []models.TransactionLine
	manualTagIDs  []uint
	processing    []uint
	deleted       []uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		duplicates:   map[string]*models.ReceiptScan{},
		transactions: map[uint]*models.Transaction{},
		scans:        map[uint]*models.ReceiptScan{},
		categories:   map[string]*models.Category{},
		nextID:       1,
	}
}

func (f *fakeStore) FindDuplicateScan(ctx context.Context, userID uint, contentHash string) (*models.ReceiptScan, error) {
	return f.duplicates[contentHash], nil
}

func (f *fakeStore) CreateUploadedTransaction(ctx context.Context, tx *models.Transaction, scan *models.ReceiptScan) error {
	if f.createErr != nil {
		return f.createErr
	}
	tx.ID = f.nextID
	f.nextID++
	scan.ID = f.nextID
	f.nextID++
	scan.TransactionID = tx.ID
	tx.Scan = scan
	f.transactions[tx.ID] = tx
	f.scans[scan.ID] = scan
	return nil
}

func (f *fakeStore) CreateManualTransaction(ctx context.Context, tx *models.Transaction, lines []models.TransactionLine, tagIDs []uint) error {
	tx.ID = f.nextID
	f.nextID++
	tx.Lines = lines
	f.transactions[tx.ID] = tx
	f.manualCreated = tx
	f.manualLines = lines
	f.manualTagIDs = tagIDs
	return nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.transactions {
		if tx.UploadedBy == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, id uint, patch store.TransactionPatch) error {
	if _, ok := f.transactions[id]; !ok {
		return store.ErrNotFound
	}
	if patch.MerchantName != nil {
		f.transactions[id].MerchantName = *patch.MerchantName
	}
	return nil
}

func (f *fakeStore) UpdateTransactionLine(ctx context.Context, transactionID, lineID uint, patch store.LinePatch) error {
	return nil
}

func (f *fakeStore) DeleteTransaction(ctx context.Context, id uint) error {
	if _, ok := f.transactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.transactions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) GetScanByTransaction(ctx context.Context, transactionID uint) (*models.ReceiptScan, error) {
	for _, scan := range f.scans {
		if scan.TransactionID == transactionID {
			return scan, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) MarkScanProcessing(ctx context.Context, scanID uint) error {
	scan, ok := f.scans[scanID]
	if !ok {
		return store.ErrNotFound
	}
	scan.Status = models.ScanStatusProcessing
	f.processing = append(f.processing, scanID)
	return nil
}

func (f *fakeStore) FindCategoryByName(ctx context.Context, userID uint, name string) (*models.Category, error) {
	return f.categories[name], nil
}

type fakeImageStore struct {
	saved   map[string][]byte
	removed []string
	saveErr error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{saved: map[string][]byte{}}
}

func (f *fakeImageStore) Save(data []byte, originalName string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	path := "uploads/" + originalName
	f.saved[path] = data
	return path, nil
}

func (f *fakeImageStore) Exists(path string) bool {
	_, ok := f.saved[path]
	return ok
}

func (f *fakeImageStore) Remove(path string) error {
	delete(f.saved, path)
	f.removed = append(f.removed, path)
	return nil
}

type fakePublisher struct {
	published []*jobs.ParseReceiptJob
	err       error
}

func (f *fakePublisher) PublishParseReceipt(ctx context.Context, job *jobs.ParseReceiptJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newTestService(db *fakeStore, images *fakeImageStore, pub *fakePublisher) *Service {
	return NewService(db, images, pub, nil, zerolog.Nop())
}

func TestUpload(t *testing.T) {
	db := newFakeStore()
	images := newFakeImageStore()
	pub := &fakePublisher{}
	svc := newTestService(db, images, pub)

	tx, err := svc.Upload(context.Background(), 1, "receipt.jpg", []byte("image-bytes"), false)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if tx.MerchantName != models.PlaceholderMerchant {
		t.Errorf("merchant = %q, want placeholder", tx.MerchantName)
	}
	if tx.Scan == nil || tx.Scan.Status != models.ScanStatusProcessing {
		t.Fatalf("scan = %+v, want processing", tx.Scan)
	}
	if tx.Scan.ContentHash == "" {
		t.Error("expected content hash to be set")
	}
	if len(images.saved) != 1 {
		t.Errorf("saved images = %d, want 1", len(images.saved))
	}
	if len(pub.published) != 1 {
		t.Fatalf("published jobs = %d, want 1", len(pub.published))
	}
	job := pub.published[0]
	if job.TransactionID != tx.ID || job.ScanID != tx.Scan.ID || job.UserID != 1 {
		t.Errorf("job = %+v does not reference the created rows", job)
	}
}

func TestUploadDuplicate(t *testing.T) {
	db := newFakeStore()
	images := newFakeImageStore()
	pub := &fakePublisher{}
	svc := newTestService(db, images, pub)

	data := []byte("same-bytes")
	first, err := svc.Upload(context.Background(), 1, "a.jpg", data, false)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	db.duplicates[first.Scan.ContentHash] = first.Scan

	_, err = svc.Upload(context.Background(), 1, "b.jpg", data, false)
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}
	if dup.TransactionID != first.ID || dup.ScanID != first.Scan.ID {
		t.Errorf("duplicate points at %+v, want tx %d scan %d", dup, first.ID, first.Scan.ID)
	}
	if len(pub.published) != 1 {
		t.Errorf("published jobs = %d, duplicate must not schedule a job", len(pub.published))
	}

	// Force bypasses dedup and creates a second transaction.
	second, err := svc.Upload(context.Background(), 1, "b.jpg", data, true)
	if err != nil {
		t.Fatalf("forced upload: %v", err)
	}
	if second.ID == first.ID {
		t.Error("forced upload must create a new transaction")
	}
	if len(pub.published) != 2 {
		t.Errorf("published jobs = %d, want 2", len(pub.published))
	}
}

func TestUploadCleansUpImageOnStoreFailure(t *testing.T) {
	db := newFakeStore()
	db.createErr = errors.New("db down")
	images := newFakeImageStore()
	svc := newTestService(db, images, &fakePublisher{})

	if _, err := svc.Upload(context.Background(), 1, "a.jpg", []byte("x"), false); err == nil {
		t.Fatal("expected upload to fail")
	}
	if len(images.saved) != 0 {
		t.Errorf("saved = %v, want orphaned image removed", images.saved)
	}
}

func TestRetry(t *testing.T) {
	db := newFakeStore()
	images := newFakeImageStore()
	pub := &fakePublisher{}
	svc := newTestService(db, images, pub)

	tx, err := svc.Upload(context.Background(), 1, "a.jpg", []byte("x"), false)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	pub.published = nil

	t.Run("processing scan is not retryable", func(t *testing.T) {
		if _, err := svc.Retry(context.Background(), 1, tx.ID); !errors.Is(err, ErrInvalidScanState) {
			t.Errorf("err = %v, want ErrInvalidScanState", err)
		}
	})

	tx.Scan.Status = models.ScanStatusError

	t.Run("other user forbidden", func(t *testing.T) {
		if _, err := svc.Retry(context.Background(), 2, tx.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown transaction", func(t *testing.T) {
		if _, err := svc.Retry(context.Background(), 1, 9999); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("success republishes", func(t *testing.T) {
		got, err := svc.Retry(context.Background(), 1, tx.ID)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if got.Scan.Status != models.ScanStatusProcessing {
			t.Errorf("scan status = %q, want processing", got.Scan.Status)
		}
		if len(pub.published) != 1 {
			t.Fatalf("published jobs = %d, want 1", len(pub.published))
		}
		if pub.published[0].TransactionID != tx.ID {
			t.Errorf("job transaction = %d, want %d", pub.published[0].TransactionID, tx.ID)
		}
		if len(db.processing) != 1 {
			t.Errorf("MarkScanProcessing calls = %d, want 1", len(db.processing))
		}
	})

	t.Run("missing image", func(t *testing.T) {
		tx.Scan.Status = models.ScanStatusError
		images.Remove(*tx.Scan.ImagePath)
		if _, err := svc.Retry(context.Background(), 1, tx.ID); !errors.Is(err, ErrImageMissing) {
			t.Errorf("err = %v, want ErrImageMissing", err)
		}
	})
}

func TestCreateManualWithLines(t *testing.T) {
	db := newFakeStore()
	svc := newTestService(db, newFakeImageStore(), &fakePublisher{})

	tx, err := svc.CreateManual(context.Background(), 1, ManualTransactionInput{
		MerchantName: "Market",
		TotalAmount:  999, // client total ignored when lines are present
		Lines: []ManualLine{
			{Name: "Apples", Price: 4.50, Quantity: 2},
			{Name: "Juice", Price: 6, Quantity: 0}, // quantity clamps to 1
		},
	})
	if err != nil {
		t.Fatalf("create manual: %v", err)
	}

	if tx.TotalAmount != 15 {
		t.Errorf("total = %v, want 15 recomputed from lines", tx.TotalAmount)
	}
	if !tx.IsManual {
		t.Error("expected manual flag")
	}
	if tx.Date == nil {
		t.Error("expected date to default to now")
	}
	if tx.Currency != "PLN" {
		t.Errorf("currency = %q, want default PLN", tx.Currency)
	}
	if tx.Type != models.TransactionTypeExpense {
		t.Errorf("type = %q, want default expense", tx.Type)
	}
	if len(db.manualLines) != 2 {
		t.Fatalf("lines = %d, want 2", len(db.manualLines))
	}
	if db.manualLines[1].Quantity != 1 {
		t.Errorf("quantity = %v, want clamped to 1", db.manualLines[1].Quantity)
	}
}

func TestCreateManualWithoutLines(t *testing.T) {
	db := newFakeStore()
	db.categories["Other"] = &models.Category{ID: 7, Name: "Other", IsSystem: true}
	svc := newTestService(db, newFakeImageStore(), &fakePublisher{})

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tx, err := svc.CreateManual(context.Background(), 1, ManualTransactionInput{
		MerchantName: "Landlord",
		TotalAmount:  1200,
		Currency:     "EUR",
		Date:         &date,
		Type:         models.TransactionTypeTransfer,
		TagIDs:       []uint{3},
	})
	if err != nil {
		t.Fatalf("create manual: %v", err)
	}

	if tx.TotalAmount != 1200 {
		t.Errorf("total = %v, want 1200", tx.TotalAmount)
	}
	if len(db.manualLines) != 1 {
		t.Fatalf("lines = %d, want one synthetic line", len(db.manualLines))
	}
	line := db.manualLines[0]
	if line.Name != "Total" || line.Price != 1200 || line.Quantity != 1 {
		t.Errorf("synthetic line = %+v", line)
	}
	if line.CategoryID == nil || *line.CategoryID != 7 {
		t.Errorf("synthetic category = %v, want Other (7)", line.CategoryID)
	}
	if tx.Currency != "EUR" || tx.Type != models.TransactionTypeTransfer {
		t.Errorf("tx = %+v, client values must be kept", tx)
	}
	if len(db.manualTagIDs) != 1 || db.manualTagIDs[0] != 3 {
		t.Errorf("tag ids = %v, want [3]", db.manualTagIDs)
	}
}

func TestDelete(t *testing.T) {
	db := newFakeStore()
	images := newFakeImageStore()
	svc := newTestService(db, images, &fakePublisher{})

	tx, err := svc.Upload(context.Background(), 1, "a.jpg", []byte("x"), false)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.Delete(context.Background(), 2, tx.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden for other user", err)
	}

	if err := svc.Delete(context.Background(), 1, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(db.deleted) != 1 || db.deleted[0] != tx.ID {
		t.Errorf("deleted = %v, want [%d]", db.deleted, tx.ID)
	}
	if len(images.removed) != 1 {
		t.Errorf("removed images = %d, want 1", len(images.removed))
	}
	if err := svc.Delete(context.Background(), 1, tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetOwnership(t *testing.T) {
	db := newFakeStore()
	svc := newTestService(db, newFakeImageStore(), &fakePublisher{})

	tx, err := svc.Upload(context.Background(), 1, "a.jpg", []byte("x"), false)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := svc.Get(context.Background(), 2, tx.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	got, err := svc.Get(context.Background(), 1, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != tx.ID {
		t.Errorf("got %d, want %d", got.ID, tx.ID)
	}
}
