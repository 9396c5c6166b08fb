package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"paragon-backend/internal/imagestore"
	"paragon-backend/internal/jobs"
	"paragon-backend/internal/models"
	"paragon-backend/internal/pipeline"
	"paragon-backend/internal/store"
)

// Store is the persistence surface the service needs. *store.DB satisfies
// it.
type Store interface {
	FindDuplicateScan(ctx context.Context, userID uint, contentHash string) (*models.ReceiptScan, error)
	CreateUploadedTransaction(ctx context.Context, tx *models.Transaction, scan *models.ReceiptScan) error
	CreateManualTransaction(ctx context.Context, tx *models.Transaction, lines []models.TransactionLine, tagIDs []uint) error
	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uint, patch store.TransactionPatch) error
	UpdateTransactionLine(ctx context.Context, transactionID, lineID uint, patch store.LinePatch) error
	DeleteTransaction(ctx context.Context, id uint) error
	GetScanByTransaction(ctx context.Context, transactionID uint) (*models.ReceiptScan, error)
	MarkScanProcessing(ctx context.Context, scanID uint) error
	FindCategoryByName(ctx context.Context, userID uint, name string) (*models.Category, error)
}

// ImageStore is the slice of image persistence the service needs.
type ImageStore interface {
	Save(data []byte, originalName string) (string, error)
	Exists(path string) bool
	Remove(path string) error
}

// Service drives the synchronous half of ingestion and the plain
// transaction operations around it. The asynchronous half lives in
// pipeline.Processor, reached through the job queue.
type Service struct {
	db        Store
	images    ImageStore
	publisher jobs.Publisher
	archiver  imagestore.Archiver // optional
	log       zerolog.Logger
}

// NewService wires an ingestion service. archiver may be nil.
func NewService(db Store, images ImageStore, publisher jobs.Publisher, archiver imagestore.Archiver, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		images:    images,
		publisher: publisher,
		archiver:  archiver,
		log:       log,
	}
}

// Upload accepts receipt image bytes, runs the dedup check, persists the
// placeholder transaction + scan, and schedules the parse job. It returns
// the placeholder immediately; the parse runs in the background.
func (s *Service) Upload(ctx context.Context, userID uint, filename string, data []byte, force bool) (*models.Transaction, error) {
	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	if !force {
		dup, err := s.db.FindDuplicateScan(ctx, userID, contentHash)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}
		if dup != nil {
			return nil, &DuplicateError{ScanID: dup.ID, TransactionID: dup.TransactionID}
		}
	}

	imagePath, err := s.images.Save(data, filename)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	tx := &models.Transaction{
		MerchantName: models.PlaceholderMerchant,
		Currency:     pipeline.DefaultCurrency,
		Type:         models.TransactionTypeExpense,
		UploadedBy:   userID,
	}
	scan := &models.ReceiptScan{
		ImagePath:   &imagePath,
		Status:      models.ScanStatusProcessing,
		ContentHash: contentHash,
	}
	if err := s.db.CreateUploadedTransaction(ctx, tx, scan); err != nil {
		// The rows never existed; don't leave the file behind.
		if rmErr := s.images.Remove(imagePath); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("image_path", imagePath).Msg("Orphaned image cleanup failed")
		}
		return nil, fmt.Errorf("create placeholder: %w", err)
	}

	if s.archiver != nil {
		// Best-effort off-site copy; never blocks or fails the upload.
		go func(object string, payload []byte) {
			if err := s.archiver.Archive(context.Background(), object, payload); err != nil {
				s.log.Warn().Err(err).Str("object", object).Msg("Receipt archive failed")
			}
		}(filepath.Base(imagePath), data)
	}

	job := &jobs.ParseReceiptJob{
		TransactionID: tx.ID,
		ScanID:        scan.ID,
		ImagePath:     imagePath,
		UserID:        userID,
	}
	if err := s.publisher.PublishParseReceipt(ctx, job); err != nil {
		return nil, fmt.Errorf("schedule parse job: %w", err)
	}

	s.log.Info().
		Uint("transaction_id", tx.ID).
		Uint("scan_id", scan.ID).
		Uint("user_id", userID).
		Bool("force", force).
		Msg("Receipt accepted for ingestion")

	return tx, nil
}

// Retry re-enters the parse step for a scan stuck in the error state. No
// new transaction or scan row is created; the stored image is reused.
func (s *Service) Retry(ctx context.Context, userID, transactionID uint) (*models.Transaction, error) {
	tx, err := s.db.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UploadedBy != userID {
		return nil, ErrForbidden
	}

	scan, err := s.db.GetScanByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if scan.Status != models.ScanStatusError {
		return nil, ErrInvalidScanState
	}
	if scan.ImagePath == nil || !s.images.Exists(*scan.ImagePath) {
		return nil, ErrImageMissing
	}

	if err := s.db.MarkScanProcessing(ctx, scan.ID); err != nil {
		return nil, fmt.Errorf("mark scan processing: %w", err)
	}

	job := &jobs.ParseReceiptJob{
		TransactionID: tx.ID,
		ScanID:        scan.ID,
		ImagePath:     *scan.ImagePath,
		UserID:        userID,
	}
	if err := s.publisher.PublishParseReceipt(ctx, job); err != nil {
		return nil, fmt.Errorf("schedule parse job: %w", err)
	}

	s.log.Info().
		Uint("transaction_id", tx.ID).
		Uint("scan_id", scan.ID).
		Msg("Receipt retry scheduled")

	scan.Status = models.ScanStatusProcessing
	tx.Scan = scan
	return tx, nil
}

// ManualLine is one client-supplied line for a manual transaction.
type ManualLine struct {
	Name       string
	Price      float64
	Quantity   float64
	CategoryID *uint
}

// ManualTransactionInput is the payload for CreateManual.
type ManualTransactionInput struct {
	MerchantName string
	Currency     string
	Date         *time.Time
	Type         models.TransactionType
	TotalAmount  float64
	CategoryID   *uint
	TagIDs       []uint
	Lines        []ManualLine
}

// CreateManual creates a fully populated manual transaction. With lines
// supplied the total is recomputed from them, overriding the client total;
// without lines one synthetic line carries the total, so every transaction
// has at least one line. Manual transactions never get a scan.
func (s *Service) CreateManual(ctx context.Context, userID uint, in ManualTransactionInput) (*models.Transaction, error) {
	date := in.Date
	if date == nil {
		now := time.Now()
		date = &now
	}
	currency := in.Currency
	if currency == "" {
		currency = pipeline.DefaultCurrency
	}
	txType := in.Type
	if txType == "" {
		txType = models.TransactionTypeExpense
	}

	var lines []models.TransactionLine
	total := in.TotalAmount
	if len(in.Lines) > 0 {
		total = 0
		for _, l := range in.Lines {
			quantity := l.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			total += l.Price * quantity
			lines = append(lines, models.TransactionLine{
				Name:       l.Name,
				Price:      l.Price,
				Quantity:   quantity,
				CategoryID: l.CategoryID,
			})
		}
	} else {
		synthetic := models.TransactionLine{
			Name:     "Total",
			Price:    total,
			Quantity: 1,
		}
		if cat, err := s.db.FindCategoryByName(ctx, userID, pipeline.DefaultItemCategory); err == nil && cat != nil {
			id := cat.ID
			synthetic.CategoryID = &id
		}
		lines = append(lines, synthetic)
	}

	tx := &models.Transaction{
		MerchantName: in.MerchantName,
		Date:         date,
		TotalAmount:  total,
		Currency:     currency,
		IsManual:     true,
		Type:         txType,
		UploadedBy:   userID,
		CategoryID:   in.CategoryID,
	}
	if err := s.db.CreateManualTransaction(ctx, tx, lines, in.TagIDs); err != nil {
		return nil, fmt.Errorf("create manual transaction: %w", err)
	}

	s.log.Info().
		Uint("transaction_id", tx.ID).
		Uint("user_id", userID).
		Int("lines", len(lines)).
		Msg("Manual transaction created")

	return tx, nil
}

// Delete removes a transaction with its scan and lines. The on-disk image
// is removed best-effort first; row deletion is atomic in the store.
func (s *Service) Delete(ctx context.Context, userID, transactionID uint) error {
	tx, err := s.db.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if tx.UploadedBy != userID {
		return ErrForbidden
	}

	if tx.Scan != nil && tx.Scan.ImagePath != nil {
		if err := s.images.Remove(*tx.Scan.ImagePath); err != nil {
			s.log.Warn().Err(err).Str("image_path", *tx.Scan.ImagePath).Msg("Image removal failed during delete")
		}
	}

	return s.db.DeleteTransaction(ctx, transactionID)
}

// List returns the user's transactions, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.Transaction, error) {
	return s.db.ListTransactions(ctx, userID)
}

// Get loads one transaction with an ownership check.
func (s *Service) Get(ctx context.Context, userID, transactionID uint) (*models.Transaction, error) {
	tx, err := s.db.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UploadedBy != userID {
		return nil, ErrForbidden
	}
	return tx, nil
}

// Patch applies a partial update to an owned transaction and returns the
// updated row.
func (s *Service) Patch(ctx context.Context, userID, transactionID uint, patch store.TransactionPatch) (*models.Transaction, error) {
	if _, err := s.Get(ctx, userID, transactionID); err != nil {
		return nil, err
	}
	if err := s.db.UpdateTransaction(ctx, transactionID, patch); err != nil {
		return nil, err
	}
	return s.db.GetTransaction(ctx, transactionID)
}

// PatchLine applies a partial update to one line of an owned transaction.
func (s *Service) PatchLine(ctx context.Context, userID, transactionID, lineID uint, patch store.LinePatch) (*models.Transaction, error) {
	if _, err := s.Get(ctx, userID, transactionID); err != nil {
		return nil, err
	}
	if err := s.db.UpdateTransactionLine(ctx, transactionID, lineID, patch); err != nil {
		return nil, err
	}
	return s.db.GetTransaction(ctx, transactionID)
}
