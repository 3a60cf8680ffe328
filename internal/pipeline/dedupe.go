package pipeline

import "salespipe/internal/logging"

// Dedupe removes records sharing an order_id, keeping the first
// occurrence. Surviving order matches first-seen order. Returns
// the unique records and the number of duplicates dropped.
func Dedupe(records []CleanRecord, sink logging.Sink) ([]CleanRecord, int) {
	seen := make(map[string]int, len(records))
	unique := make([]CleanRecord, 0, len(records))
	duplicates := 0

	for _, rec := range records {
		if firstPos, ok := seen[rec.OrderID]; ok {
			duplicates++
			sink.Emit(logging.Warning, "duplicate order_id detected, removing duplicate",
				logging.Fields{"order_id": rec.OrderID, "first_seen_at": firstPos})
			continue
		}
		seen[rec.OrderID] = len(unique)
		unique = append(unique, rec)
	}

	if duplicates > 0 {
		sink.Emit(logging.Info, "removed duplicate records", logging.Fields{"count": duplicates})
	} else {
		sink.Emit(logging.Debug, "no duplicates found", nil)
	}
	return unique, duplicates
}
