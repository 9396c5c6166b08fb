package pipeline

import (
	"fmt"
	"strings"
)

// transformModelOutput converts raw model JSON into a ReceiptData. The
// model's contract is best-effort: missing or mistyped fields fall back to
// defaults instead of failing, so a syntactically valid but empty object
// still decodes (and then fails validation, not decoding).
func transformModelOutput(raw map[string]interface{}) *ReceiptData {
	data := &ReceiptData{
		MerchantName: stringField(raw, "merchant_name"),
		Date:         stringField(raw, "date"),
		TotalAmount:  floatField(raw, "total_amount", 0),
		Currency:     stringField(raw, "currency"),
	}
	if data.Currency == "" {
		data.Currency = DefaultCurrency
	}

	itemsAny, ok := raw["items"]
	if !ok {
		return data
	}
	itemsSlice, ok := itemsAny.([]interface{})
	if !ok {
		return data
	}

	for _, item := range itemsSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringField(obj, "name"))
		if name == "" {
			continue
		}
		price, hasPrice := optionalFloatField(obj, "price")
		if !hasPrice {
			continue
		}
		quantity := floatField(obj, "quantity", 1)
		if quantity <= 0 {
			quantity = 1
		}
		category := strings.TrimSpace(stringField(obj, "category"))
		if category == "" {
			category = DefaultItemCategory
		}
		data.Items = append(data.Items, ReceiptItem{
			Name:     name,
			Price:    price,
			Quantity: quantity,
			Category: category,
		})
	}

	return data
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// floatField reads a numeric field, tolerating the int/float ambiguity of
// decoded JSON and numeric strings the model sometimes emits.
func floatField(m map[string]interface{}, key string, def float64) float64 {
	f, ok := optionalFloatField(m, key)
	if !ok {
		return def
	}
	return f
}

func optionalFloatField(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(val), "%f", &f); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
