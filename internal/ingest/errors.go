package ingest

import (
	"errors"
	"fmt"
)

// ErrForbidden means the acting user does not own the transaction.
var ErrForbidden = errors.New("transaction belongs to another user")

// ErrInvalidScanState means retry was requested for a scan that is not in
// the error state.
var ErrInvalidScanState = errors.New("scan is not in a retryable state")

// ErrImageMissing means the stored image is gone, so the scan cannot be
// retried; the user must re-upload.
var ErrImageMissing = errors.New("stored receipt image no longer exists")

// DuplicateError is returned when an upload's content hash has already been
// seen for this user. It carries enough for the caller to point at the
// existing rows and resubmit with force.
type DuplicateError struct {
	ScanID        uint
	TransactionID uint
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate receipt: already uploaded as transaction %d (scan %d)", e.TransactionID, e.ScanID)
}
