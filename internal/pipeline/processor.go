package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"paragon-backend/internal/jobs"
	"paragon-backend/internal/models"
	"paragon-backend/internal/store"
)

// ScanStore is the slice of persistence the processor needs. *store.DB
// satisfies it; tests use a fake.
type ScanStore interface {
	MarkScanError(ctx context.Context, scanID uint) error
	MarkScanErrorWithPartial(ctx context.Context, scanID, transactionID uint, partial store.PartialExtraction) error
	CompleteScan(ctx context.Context, scanID, transactionID uint, result store.CompletedExtraction, lines []models.TransactionLine) error
	FindCategoryByName(ctx context.Context, userID uint, name string) (*models.Category, error)
}

// ImageReader reads and removes stored receipt images.
type ImageReader interface {
	Read(path string) ([]byte, error)
	Remove(path string) error
}

// Processor runs the asynchronous half of ingestion: parse an uploaded
// image and drive its scan to a terminal state. It owns no request-scoped
// resources; the store handle opens its own sessions, so a processor keeps
// working after the originating request has returned.
type Processor struct {
	db      ScanStore
	images  ImageReader
	parser  ReceiptParser
	timeout time.Duration
	log     zerolog.Logger
}

// NewProcessor wires a processor. timeout bounds a single parser call; zero
// means no bound.
func NewProcessor(db ScanStore, images ImageReader, parser ReceiptParser, timeout time.Duration, log zerolog.Logger) *Processor {
	return &Processor{
		db:      db,
		images:  images,
		parser:  parser,
		timeout: timeout,
		log:     log,
	}
}

// HandleJob adapts ProcessScan to the queue's handler signature.
func (p *Processor) HandleJob(ctx context.Context, job jobs.Job) error {
	parseJob, ok := job.(*jobs.ParseReceiptJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}
	return p.ProcessScan(ctx, parseJob)
}

// ProcessScan executes the parse step for one scan. Parse and validation
// failures are recorded durably on the scan row and return nil — nobody is
// waiting on this job, and re-running the model on the same bytes is a user
// decision (retry), not a queue decision. A non-nil return means the
// outcome could not be recorded.
func (p *Processor) ProcessScan(ctx context.Context, job *jobs.ParseReceiptJob) error {
	log := p.log.With().
		Uint("scan_id", job.ScanID).
		Uint("transaction_id", job.TransactionID).
		Logger()

	log.Info().Msg("Receipt parsing started")

	imageBytes, err := p.images.Read(job.ImagePath)
	if err != nil {
		log.Error().Err(err).Str("image_path", job.ImagePath).Msg("Stored image unreadable")
		return p.markError(ctx, job.ScanID)
	}

	parseCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// A timeout surfaces as an error here and is handled exactly like any
	// other parser failure.
	data, err := p.parser.Parse(parseCtx, imageBytes)
	if err != nil || data == nil {
		log.Error().Err(err).Msg("Parser returned no result")
		return p.markError(ctx, job.ScanID)
	}

	if !usable(data) {
		log.Warn().
			Str("merchant", data.MerchantName).
			Float64("total", data.TotalAmount).
			Msg("Extraction failed validation, persisting partial data")

		partial := store.PartialExtraction{
			MerchantName: data.MerchantName,
			TotalAmount:  data.TotalAmount,
			Currency:     data.Currency,
		}
		if strings.TrimSpace(partial.MerchantName) == "" {
			partial.MerchantName = UnknownMerchant
		}
		if partial.Currency == "" {
			partial.Currency = DefaultCurrency
		}
		if err := p.db.MarkScanErrorWithPartial(ctx, job.ScanID, job.TransactionID, partial); err != nil {
			return fmt.Errorf("record validation failure: %w", err)
		}
		return nil
	}

	date := parseReceiptDate(data.Date)
	if date == nil && strings.TrimSpace(data.Date) != "" {
		log.Warn().Str("date", data.Date).Msg("Unparseable receipt date ignored")
	}

	lines := make([]models.TransactionLine, 0, len(data.Items))
	for _, item := range data.Items {
		line := models.TransactionLine{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
		// Best-effort category match: a miss or a lookup failure leaves the
		// line uncategorized, never fails the ingestion.
		cat, err := p.db.FindCategoryByName(ctx, job.UserID, item.Category)
		if err != nil {
			log.Warn().Err(err).Str("category", item.Category).Msg("Category lookup failed")
		} else if cat != nil {
			line.CategoryID = &cat.ID
		}
		lines = append(lines, line)
	}

	result := store.CompletedExtraction{
		MerchantName: data.MerchantName,
		Date:         date,
		TotalAmount:  data.TotalAmount,
		Currency:     data.Currency,
	}
	if err := p.db.CompleteScan(ctx, job.ScanID, job.TransactionID, result, lines); err != nil {
		return fmt.Errorf("commit parse result: %w", err)
	}

	// The data is durable; the image is now a disposable cache artifact.
	// Deletion failures are logged, not retried, and never roll back done.
	if err := p.images.Remove(job.ImagePath); err != nil {
		log.Warn().Err(err).Str("image_path", job.ImagePath).Msg("Image cleanup failed")
	}

	log.Info().
		Str("merchant", data.MerchantName).
		Int("lines", len(lines)).
		Msg("Receipt parsing finished")

	return nil
}

func (p *Processor) markError(ctx context.Context, scanID uint) error {
	if err := p.db.MarkScanError(ctx, scanID); err != nil {
		return fmt.Errorf("record parser failure: %w", err)
	}
	return nil
}
