package pipeline

import (
	"strings"
	"time"
)

// usable reports whether an extraction is plausible enough to commit as a
// complete transaction: it needs a real merchant name and a positive total.
// Anything else is persisted as partial data with scan status=error.
func usable(data *ReceiptData) bool {
	merchant := strings.TrimSpace(data.MerchantName)
	if merchant == "" || strings.EqualFold(merchant, UnknownMerchant) {
		return false
	}
	return data.TotalAmount > 0
}

// parseReceiptDate parses the model's date string. Only YYYY-MM-DD is
// accepted; anything else returns nil and the transaction keeps its
// existing date.
func parseReceiptDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
