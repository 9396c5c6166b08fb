package pipeline

// ReceiptData is one extraction returned by the vision model. Every field
// may be absent or junk; decoding tolerates anything that is valid JSON and
// validation decides what is usable.
type ReceiptData struct {
	MerchantName string        // from "merchant_name", may be "" or "Unknown"
	Date         string        // from "date", expected YYYY-MM-DD, may be ""
	TotalAmount  float64       // from "total_amount"
	Currency     string        // from "currency", defaults to "PLN"
	Items        []ReceiptItem // from "items"
}

// ReceiptItem is one line item on a parsed receipt.
type ReceiptItem struct {
	Name     string  // required; items without a name are dropped
	Price    float64 // required; items without a price are dropped
	Quantity float64 // defaults to 1
	Category string  // defaults to "Other"
}

// DefaultCurrency is applied when the model omits a currency.
const DefaultCurrency = "PLN"

// DefaultItemCategory is applied when the model omits an item category.
const DefaultItemCategory = "Other"

// UnknownMerchant is what an unusable merchant extraction is normalized to
// before being persisted as partial data.
const UnknownMerchant = "Unknown"
