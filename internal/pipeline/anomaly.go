package pipeline

import "salespipe/internal/logging"

// Business thresholds for anomaly detection.
const (
	HighValueThreshold    = 500.00
	HighQuantityThreshold = 20
	LowStockThreshold     = 10
)

// Anomaly flag tags.
const (
	FlagHighValue    = "high_value"
	FlagHighQuantity = "high_quantity"
)

// AnomalyDetector flags suspicious business patterns. Flags never
// reject a record; they are attached for human review.
type AnomalyDetector struct {
	sink logging.Sink
}

// NewAnomalyDetector returns a detector reporting to sink.
func NewAnomalyDetector(sink logging.Sink) *AnomalyDetector {
	return &AnomalyDetector{sink: sink}
}

// Detect returns the alert tags for rec. The result is never nil:
// a clean record gets an empty set. rec is not mutated.
func (d *AnomalyDetector) Detect(rec CleanRecord, rowNum int) []string {
	alerts := []string{}

	if rec.Total > HighValueThreshold {
		d.sink.Emit(logging.Warning, "high-value order detected, flagged for review",
			logging.Fields{"row": rowNum, "order_id": rec.OrderID, "total": rec.Total})
		alerts = append(alerts, FlagHighValue)
	}
	if rec.Quantity > HighQuantityThreshold {
		d.sink.Emit(logging.Warning, "unusually high quantity, possible bulk order or fraud",
			logging.Fields{"row": rowNum, "order_id": rec.OrderID, "quantity": rec.Quantity})
		alerts = append(alerts, FlagHighQuantity)
	}

	return alerts
}
