package pipeline

import (
	"sort"

	"salespipe/internal/logging"
)

// ── Enricher ───────────────────────────────────────────────
// Joins clean records against the product catalog, denormalizing
// name/category/stock onto each record. A pure join: records whose
// product is unknown get UNKNOWN/UNKNOWN/-1 and the missing id is
// reported once at the end, not once per row.

// UnknownProduct is the sentinel for fields of an unmatched product.
const UnknownProduct = "UNKNOWN"

// Enricher attaches catalog data to clean records.
type Enricher struct {
	sink logging.Sink
}

// NewEnricher returns an Enricher reporting to sink.
func NewEnricher(sink logging.Sink) *Enricher {
	return &Enricher{sink: sink}
}

// Enrich copies catalog fields onto each record in place and
// returns the slice. Products with stock below LowStockThreshold
// raise a low-stock warning; unknown product ids are collected
// into a set and reported in a single message.
func (e *Enricher) Enrich(records []CleanRecord, catalog []CatalogEntry) []CleanRecord {
	e.sink.Emit(logging.Info, "enriching rows with product catalog",
		logging.Fields{"rows": len(records), "products": len(catalog)})

	lookup := make(map[string]CatalogEntry, len(catalog))
	for _, entry := range catalog {
		lookup[entry.ProductID] = entry
	}

	missing := make(map[string]struct{})
	for i := range records {
		product, ok := lookup[records[i].ProductID]
		if !ok {
			missing[records[i].ProductID] = struct{}{}
			records[i].ProductName = UnknownProduct
			records[i].Category = UnknownProduct
			records[i].CurrentStock = -1
			continue
		}

		records[i].ProductName = product.Name
		records[i].Category = product.Category
		records[i].CurrentStock = product.Stock
		e.sink.Emit(logging.Debug, "enriched order with product data",
			logging.Fields{"order_id": records[i].OrderID, "product": product.Name, "stock": product.Stock})

		if product.Stock < LowStockThreshold {
			e.sink.Emit(logging.Warning, "low stock alert",
				logging.Fields{"product": product.Name, "product_id": product.ProductID, "stock": product.Stock})
		}
	}

	if len(missing) > 0 {
		ids := make([]string, 0, len(missing))
		for id := range missing {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		e.sink.Emit(logging.Warning, "product ids in sales data not found in catalog",
			logging.Fields{"count": len(ids), "product_ids": ids})
	}

	return records
}

// ParseCatalog converts raw catalog records into typed entries.
// Entries without a product_id are skipped.
func ParseCatalog(raw []RawRecord) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(raw))
	for _, row := range raw {
		id := stringField(row, "product_id")
		if id == "" {
			continue
		}
		stock := -1
		if s, ok := intValue(row["stock"]); ok {
			stock = s
		}
		entries = append(entries, CatalogEntry{
			ProductID: id,
			Name:      stringField(row, "name"),
			Category:  stringField(row, "category"),
			Stock:     stock,
		})
	}
	return entries
}
