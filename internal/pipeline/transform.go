package pipeline

import (
	"fmt"

	"salespipe/internal/logging"
)

// ── Transformer ────────────────────────────────────────────
// Runs the transform stage in a fixed order:
// validate-all → dedupe → anomaly-detect-all → enrich-all.
// Data-quality problems never fail this stage; they become
// counters in the summary. The only error path is structurally
// malformed input, which is a programming error upstream.

// TransformSummary aggregates the outcome of one transform stage.
type TransformSummary struct {
	RowsIn     int
	RowsOut    int
	Skipped    int
	Duplicates int
	Anomalies  int
	// Corrections histograms issue code → occurrences for rows
	// that survived with an adjusted field.
	Corrections map[string]int
	// Rejections histograms fatal reason → dropped rows.
	Rejections map[string]int
}

// Transformer orchestrates validation, deduplication, anomaly
// detection and enrichment.
type Transformer struct {
	validator *Validator
	detector  *AnomalyDetector
	enricher  *Enricher
	sink      logging.Sink
}

// NewTransformer wires the four transform components onto one sink.
func NewTransformer(sink logging.Sink) *Transformer {
	return &Transformer{
		validator: NewValidator(sink),
		detector:  NewAnomalyDetector(sink),
		enricher:  NewEnricher(sink),
		sink:      sink,
	}
}

// Run transforms the extraction output into load-ready records.
func (t *Transformer) Run(extracted *ExtractResult) ([]CleanRecord, *TransformSummary, error) {
	if extracted == nil {
		return nil, nil, fmt.Errorf("transform: nil extraction result")
	}

	rawRows := extracted.Sales
	catalog := ParseCatalog(extracted.Catalog)

	t.sink.Emit(logging.Info, "transformation phase started",
		logging.Fields{"raw_rows": len(rawRows), "catalog_products": len(catalog)})

	summary := &TransformSummary{
		RowsIn:      len(rawRows),
		Corrections: make(map[string]int),
		Rejections:  make(map[string]int),
	}

	// Step 1: validate and clean each row.
	valid := make([]CleanRecord, 0, len(rawRows))
	for i, row := range rawRows {
		rowNum := i + 1
		t.sink.Emit(logging.Debug, "processing row",
			logging.Fields{"row": rowNum, "of": len(rawRows), "order_id": stringField(row, "order_id")})

		ok, cleaned, issues := t.validator.Validate(row, rowNum)
		if !ok {
			summary.Skipped++
			for _, issue := range issues {
				summary.Rejections[issue.Code]++
			}
			continue
		}
		for _, issue := range issues {
			summary.Corrections[issue.Code]++
		}
		valid = append(valid, *cleaned)
	}
	t.sink.Emit(logging.Info, "validation complete",
		logging.Fields{"valid": len(valid), "skipped": summary.Skipped})
	if len(summary.Corrections) > 0 {
		t.sink.Emit(logging.Info, "auto-corrected issues", logging.Fields{"issues": summary.Corrections})
	}

	// Step 2: remove duplicates.
	valid, summary.Duplicates = Dedupe(valid, t.sink)

	// Step 3: detect anomalies. Every record gets an explicit flag
	// set, empty when clean.
	t.sink.Emit(logging.Info, "running anomaly detection", nil)
	for i := range valid {
		alerts := t.detector.Detect(valid[i], i+1)
		valid[i].AnomalyFlags = alerts
		if len(alerts) > 0 {
			summary.Anomalies++
		}
	}
	t.sink.Emit(logging.Info, "anomaly detection complete", logging.Fields{"flagged": summary.Anomalies})

	// Step 4: enrich with product data.
	valid = t.enricher.Enrich(valid, catalog)

	summary.RowsOut = len(valid)
	t.sink.Emit(logging.Info, "transformation complete", logging.Fields{
		"rows_in":   summary.RowsIn,
		"rows_out":  summary.RowsOut,
		"skipped":   summary.Skipped,
		"anomalies": summary.Anomalies,
	})
	return valid, summary, nil
}
