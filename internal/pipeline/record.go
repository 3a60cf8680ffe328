package pipeline

import (
	"fmt"
	"strings"
)

// ── Records ────────────────────────────────────────────────
// RawRecord is the schema-less shape at the source boundary.
// CleanRecord is the fixed shape everything downstream relies on:
// a record only becomes a CleanRecord by passing validation.

// RawRecord is a single row as produced by a source. No field or
// type guarantees of any kind.
type RawRecord map[string]any

// CleanRecord is a validated, normalized sales row.
type CleanRecord struct {
	OrderID       string
	CustomerName  string
	Email         string
	ProductID     string
	Quantity      int     // > 0
	UnitPrice     float64 // >= 0
	Total         float64 // quantity × unit_price, rounded to 2 decimals
	OrderDate     string  // canonical YYYY-MM-DD
	PaymentMethod string
	AnomalyFlags  []string // never nil after anomaly detection
	ProductName   string
	Category      string
	CurrentStock  int // -1 = product unknown to the catalog
}

// CatalogEntry is one product in the reference catalog.
type CatalogEntry struct {
	ProductID string
	Name      string
	Category  string
	Stock     int
}

// ── Validation issues ──────────────────────────────────────

// Issue codes. Fatal codes drop the row; the rest are auto-corrections.
const (
	IssueMissingOrderID     = "missing_order_id"
	IssueMissingProductID   = "missing_product_id"
	IssueMissingEmail       = "missing_email"
	IssueInvalidQuantity    = "invalid_quantity"
	IssueInvalidQuantityTyp = "invalid_quantity_type"
	IssueNegativePrice      = "negative_price"
	IssueZeroPrice          = "zero_price"
	IssueInvalidPriceType   = "invalid_price_type"
	IssueUnparseableDate    = "unparseable_date"
)

// ValidationIssue is a tagged data-quality finding on one row.
type ValidationIssue struct {
	Row   int
	Code  string
	Fatal bool
}

// ── Helpers shared by validation and enrichment ────────────

// stringField renders a raw field as a trimmed string.
// Absent and nil both come back empty.
func stringField(row RawRecord, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
