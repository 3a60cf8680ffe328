package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"salespipe/internal/logging"
)

// ── Validator ──────────────────────────────────────────────
// Validates and normalizes one raw row into a CleanRecord, or
// rejects it with a fatal issue. Data-quality problems are never
// errors here: the outcome is returned by value so the caller can
// aggregate statistics.

// PlaceholderEmail is substituted when a row has no email.
const PlaceholderEmail = "unknown@placeholder.com"

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"2006-01-02", // ISO
	"02/01/2006", // D/M/Y
	"01-02-2006", // M-D-Y
	"Jan 2 2006",
}

// Validator checks raw rows against the CleanRecord contract.
type Validator struct {
	sink logging.Sink
}

// NewValidator returns a Validator reporting to sink.
func NewValidator(sink logging.Sink) *Validator {
	return &Validator{sink: sink}
}

// Validate returns (ok, cleaned, issues). ok=false means the row
// is dropped; issues then holds the single fatal reason. On
// success the full issue list (auto-corrections) is returned so
// the caller can build a correction histogram.
//
// Required-field checks run in a fixed order — order_id first,
// then product_id — because later diagnostics reference order_id.
func (v *Validator) Validate(row RawRecord, rowNum int) (bool, *CleanRecord, []ValidationIssue) {
	var issues []ValidationIssue

	orderID := stringField(row, "order_id")
	if orderID == "" {
		v.sink.Emit(logging.Error, "missing required field 'order_id', skipping row",
			logging.Fields{"row": rowNum})
		return false, nil, []ValidationIssue{{Row: rowNum, Code: IssueMissingOrderID, Fatal: true}}
	}

	productID := stringField(row, "product_id")
	if productID == "" {
		v.sink.Emit(logging.Error, "missing required field 'product_id', skipping row",
			logging.Fields{"row": rowNum, "order_id": orderID})
		return false, nil, []ValidationIssue{{Row: rowNum, Code: IssueMissingProductID, Fatal: true}}
	}

	cleaned := &CleanRecord{
		OrderID:       orderID,
		ProductID:     productID,
		CustomerName:  stringField(row, "customer_name"),
		PaymentMethod: stringField(row, "payment_method"),
		CurrentStock:  -1,
	}

	cleaned.Email = stringField(row, "email")
	if cleaned.Email == "" {
		v.sink.Emit(logging.Warning, "missing 'email' field, filling with placeholder",
			logging.Fields{"row": rowNum, "order_id": orderID})
		cleaned.Email = PlaceholderEmail
		issues = append(issues, ValidationIssue{Row: rowNum, Code: IssueMissingEmail})
	}

	quantity, ok := intValue(row["quantity"])
	if !ok {
		v.sink.Emit(logging.Error, "quantity is not a valid integer, skipping row",
			logging.Fields{"row": rowNum, "order_id": orderID, "quantity": row["quantity"]})
		return false, nil, []ValidationIssue{{Row: rowNum, Code: IssueInvalidQuantityTyp, Fatal: true}}
	}
	if quantity <= 0 {
		v.sink.Emit(logging.Warning, "negative or zero quantity, setting to 1",
			logging.Fields{"row": rowNum, "order_id": orderID, "quantity": quantity})
		quantity = 1
		issues = append(issues, ValidationIssue{Row: rowNum, Code: IssueInvalidQuantity})
	}
	cleaned.Quantity = quantity

	price := 0.0
	if raw := stringField(row, "unit_price"); raw != "" {
		parsed, ok := floatValue(row["unit_price"])
		if !ok {
			v.sink.Emit(logging.Error, "price is not a valid number, skipping row",
				logging.Fields{"row": rowNum, "order_id": orderID, "unit_price": row["unit_price"]})
			return false, nil, []ValidationIssue{{Row: rowNum, Code: IssueInvalidPriceType, Fatal: true}}
		}
		price = parsed
	}
	if price < 0 {
		v.sink.Emit(logging.Warning, "negative price, setting to 0.00",
			logging.Fields{"row": rowNum, "order_id": orderID, "unit_price": price})
		price = 0.0
		issues = append(issues, ValidationIssue{Row: rowNum, Code: IssueNegativePrice})
	} else if price == 0.0 {
		v.sink.Emit(logging.Warning, "price is 0.00, possible data entry error",
			logging.Fields{"row": rowNum, "order_id": orderID})
		issues = append(issues, ValidationIssue{Row: rowNum, Code: IssueZeroPrice})
	}
	cleaned.UnitPrice = price

	rawDate := stringField(row, "order_date")
	var parsed time.Time
	parsedOK := false
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, rawDate); err == nil {
			parsed = t
			parsedOK = true
			break
		}
	}
	if !parsedOK {
		v.sink.Emit(logging.Error, "date does not match any known format, skipping row",
			logging.Fields{"row": rowNum, "order_id": orderID, "order_date": rawDate})
		return false, nil, []ValidationIssue{{Row: rowNum, Code: IssueUnparseableDate, Fatal: true}}
	}
	cleaned.OrderDate = parsed.Format("2006-01-02")
	v.sink.Emit(logging.Debug, "parsed order date",
		logging.Fields{"row": rowNum, "raw": rawDate, "canonical": cleaned.OrderDate})

	// Total is always derived, never trusted from input.
	cleaned.Total = round2(float64(cleaned.Quantity) * cleaned.UnitPrice)

	return true, cleaned, issues
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// intValue parses a raw field as an integer. Whole floats are
// accepted (JSON numbers decode as float64); fractional values,
// non-numeric strings, nil and missing fields are not.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
		return 0, false
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
