package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salespipe/internal/logging"
)

// ── Extractor ──────────────────────────────────────────────
// Pulls the three inputs concurrently. Only the primary sales
// file is allowed to fail the run: a missing catalog degrades
// enrichment, an exhausted API just loses supplemental rows.

// ErrPrimarySourceEmpty is returned when the sales CSV yields no
// usable rows. Nothing downstream can run without them.
var ErrPrimarySourceEmpty = errors.New("primary source produced no records")

// StaleAfter is how old the sales file may be before extraction
// logs a freshness warning.
const StaleAfter = 7 * 24 * time.Hour

// ExtractResult carries everything the transform stage consumes.
type ExtractResult struct {
	Sales   []RawRecord
	Catalog []RawRecord
	API     []RawRecord

	// Counts records rows per source name, including failed
	// sources at zero.
	Counts map[string]int
	Total  int
}

// Extractor reads all configured sources. Sleep and Now exist so
// tests can run the retry loop without real waiting.
type Extractor struct {
	CSVPath    string
	APIURL     string
	MaxRetries int

	Fetcher Fetcher
	Catalog CatalogSource

	Sink  logging.Sink
	Sleep func(time.Duration)
	Now   func() time.Time
}

// NewExtractor builds an Extractor with production wiring: a
// simulated flaky API and a file-backed catalog.
func NewExtractor(csvPath, jsonPath, productKey, apiURL string, maxRetries int, sink logging.Sink) *Extractor {
	return &Extractor{
		CSVPath:    csvPath,
		APIURL:     apiURL,
		MaxRetries: maxRetries,
		Fetcher:    &SimulatedFetcher{},
		Catalog:    FileCatalog{Path: jsonPath, Key: productKey},
		Sink:       sink,
		Sleep:      time.Sleep,
		Now:        time.Now,
	}
}

// Run extracts from all sources concurrently and merges results.
func (e *Extractor) Run(ctx context.Context) (*ExtractResult, error) {
	e.Sink.Emit(logging.Info, "extraction phase started", logging.Fields{
		"sources": []string{"sales_csv", "product_catalog", "api"},
	})

	result := &ExtractResult{Counts: make(map[string]int)}
	var (
		wg       sync.WaitGroup
		salesErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		result.Sales, salesErr = e.readSales()
	}()
	go func() {
		defer wg.Done()
		result.Catalog = e.readCatalog(ctx)
	}()
	go func() {
		defer wg.Done()
		result.API = e.fetchAPI(ctx)
	}()
	wg.Wait()

	if salesErr != nil {
		return nil, salesErr
	}

	result.Counts["sales_csv"] = len(result.Sales)
	result.Counts["product_catalog"] = len(result.Catalog)
	result.Counts["api"] = len(result.API)
	result.Total = len(result.Sales) + len(result.Catalog) + len(result.API)

	e.Sink.Emit(logging.Info, "extraction phase complete", logging.Fields{
		"total_records": result.Total,
		"per_source":    result.Counts,
	})
	return result, nil
}

func (e *Extractor) readSales() ([]RawRecord, error) {
	e.Sink.Emit(logging.Info, "reading sales data", logging.Fields{"path": e.CSVPath})

	rows, modTime, err := ReadCSV(e.CSVPath)
	if err != nil {
		e.Sink.Emit(logging.Critical, "sales data unavailable",
			logging.Fields{"path": e.CSVPath, "error": err.Error()})
		return nil, fmt.Errorf("read sales: %w", err)
	}
	if len(rows) == 0 {
		e.Sink.Emit(logging.Critical, "sales file contains no data rows",
			logging.Fields{"path": e.CSVPath})
		return nil, fmt.Errorf("%w: %s", ErrPrimarySourceEmpty, e.CSVPath)
	}

	if age := e.Now().Sub(modTime); age > StaleAfter {
		e.Sink.Emit(logging.Warning, "sales data may be stale", logging.Fields{
			"path":     e.CSVPath,
			"age_days": int(age.Hours() / 24),
		})
	}

	e.Sink.Emit(logging.Info, "sales data extracted", logging.Fields{"records": len(rows)})
	return rows, nil
}

func (e *Extractor) readCatalog(ctx context.Context) []RawRecord {
	e.Sink.Emit(logging.Info, "reading product catalog", nil)

	records, err := e.Catalog.Read(ctx)
	if err != nil {
		// Non-fatal: downstream enrichment falls back to UNKNOWN.
		e.Sink.Emit(logging.Error, "product catalog unavailable, enrichment will be skipped",
			logging.Fields{"error": err.Error()})
		return nil
	}

	e.Sink.Emit(logging.Info, "product catalog extracted", logging.Fields{"products": len(records)})
	return records
}

// fetchAPI attempts the remote source with exponential backoff.
// Attempt n waits 2^n seconds before the next try. Exhausting the
// retry budget is logged as critical but does not abort the run.
func (e *Extractor) fetchAPI(ctx context.Context) []RawRecord {
	retries := e.MaxRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		e.Sink.Emit(logging.Info, "calling external API", logging.Fields{
			"url":     e.APIURL,
			"attempt": attempt + 1,
			"of":      retries,
		})

		status, records, err := e.Fetcher.Fetch(ctx, e.APIURL)
		if err == nil && status == 200 {
			e.Sink.Emit(logging.Info, "api data extracted", logging.Fields{"records": len(records)})
			return records
		}

		fields := logging.Fields{"status": status, "attempt": attempt + 1}
		if err != nil {
			fields["error"] = err.Error()
		}
		e.Sink.Emit(logging.Warning, "api request failed", fields)

		if attempt+1 < retries {
			// Exponential backoff keyed to the 1-based attempt number:
			// 2s after the first failure, 4s after the second.
			wait := time.Duration(1<<uint(attempt+1)) * time.Second
			e.Sink.Emit(logging.Info, "retrying after backoff", logging.Fields{"wait": wait.String()})
			e.Sleep(wait)
		}
	}

	e.Sink.Emit(logging.Critical, "api unreachable after all retries, continuing without api data",
		logging.Fields{"url": e.APIURL, "attempts": retries})
	return nil
}
