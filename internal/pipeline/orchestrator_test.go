package pipeline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespipe/internal/logging"
	"salespipe/internal/pipeline"
)

// dirtySalesCSV mixes clean rows with every failure mode the
// transform stage handles: a duplicate, missing ids, a bad
// quantity, a negative price and an unparseable date.
const dirtySalesCSV = `order_id,customer_name,email,product_id,quantity,unit_price,order_date,payment_method
ORD-001,Alice,alice@x.com,P-1,2,10.00,2026-01-01,credit_card
ORD-002,Bob,,P-1,1,5.50,2026-01-02,paypal
ORD-003,Cara,cara@x.com,P-2,-4,20.00,03/01/2026,credit_card
ORD-001,Alice,alice@x.com,P-1,2,10.00,2026-01-01,credit_card
ORD-004,Dan,dan@x.com,P-9,1,600.00,2026-01-04,wire
ORD-005,Eve,eve@x.com,P-2,30,2.00,2026-01-05,credit_card
,Frank,frank@x.com,P-1,1,1.00,2026-01-06,cash
ORD-006,Gina,gina@x.com,,1,1.00,2026-01-07,cash
ORD-007,Hank,hank@x.com,P-1,many,1.00,2026-01-08,cash
ORD-008,Iris,iris@x.com,P-1,1,-3.00,2026-01-09,cash
ORD-009,Jack,jack@x.com,P-2,1,4.00,not a date,cash
ORD-010,Kim,kim@x.com,P-1,1,8.25,Jan 10 2026,credit_card
`

func testRunner(t *testing.T, store pipeline.Store, faults pipeline.FaultInjector, sink logging.Sink) *pipeline.Runner {
	t.Helper()
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "sales.csv", dirtySalesCSV)
	jsonPath := writeFile(t, dir, "products.json", productsJSON)

	extractor := pipeline.NewExtractor(csvPath, jsonPath, "products", "https://api.test/sales", 3, sink)
	extractor.Fetcher = &pipeline.SimulatedFetcher{Statuses: []int{200}}
	extractor.Sleep = func(time.Duration) {}

	transformer := pipeline.NewTransformer(sink)
	loader := pipeline.NewLoader(store, 3, faults, sink)
	return pipeline.NewRunner(extractor, transformer, loader, sink)
}

func TestRunner_EndToEnd(t *testing.T) {
	store := newMemStore()
	runner := testRunner(t, store, nil, logging.Nop{})

	assert.Equal(t, pipeline.StateInit, runner.State())

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, runner.State())
	assert.True(t, stats.Succeeded())

	// 12 raw rows; 4 fatal rejects (missing order_id, missing
	// product_id, bad quantity, bad date) and 1 duplicate leave 7.
	assert.Equal(t, 12, stats.Extracted)
	assert.Equal(t, 7, stats.Transformed)
	assert.Equal(t, 7, stats.Loaded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 4, stats.Rejected)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 2, stats.Anomalies) // ORD-004 high value, ORD-005 high quantity
	assert.Equal(t, 0, stats.Errors)
	assert.Empty(t, stats.PhaseFailed)
	assert.GreaterOrEqual(t, stats.Duration, time.Duration(0))

	assert.Len(t, store.committed, 7)
	assert.Equal(t, []string{pipeline.FlagHighValue}, store.committed["ORD-004"].AnomalyFlags)
}

func TestRunner_TwelveRowsSingleBatch(t *testing.T) {
	// 12 rows, one empty order_id, one duplicate: the surviving 10
	// fit in a single batch of the default size.
	var csv = "order_id,email,product_id,quantity,unit_price,order_date\n"
	csv += ",x@x.com,P-1,1,1.00,2026-01-01\n"
	csv += "ORD-001,x@x.com,P-1,1,1.00,2026-01-01\n" // duplicated below
	for i := 1; i <= 10; i++ {
		csv += fmt.Sprintf("ORD-%03d,x@x.com,P-1,1,1.00,2026-01-01\n", i)
	}

	dir := t.TempDir()
	csvPath := writeFile(t, dir, "sales.csv", csv)
	jsonPath := writeFile(t, dir, "products.json", productsJSON)

	sink := logging.Nop{}
	extractor := pipeline.NewExtractor(csvPath, jsonPath, "products", "https://api.test/sales", 3, sink)
	extractor.Fetcher = &pipeline.SimulatedFetcher{Statuses: []int{200}}
	extractor.Sleep = func(time.Duration) {}

	store := newMemStore()
	runner := pipeline.NewRunner(extractor, pipeline.NewTransformer(sink),
		pipeline.NewLoader(store, pipeline.DefaultBatchSize, nil, sink), sink)

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Extracted)
	assert.Equal(t, 10, stats.Transformed)
	assert.Equal(t, 10, stats.Loaded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 0, stats.Errors)
	assert.Empty(t, stats.PhaseFailed)
	assert.Equal(t, 1, store.commits)
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	store := newMemStore()

	first := testRunner(t, store, nil, logging.Nop{})
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	second := testRunner(t, store, nil, logging.Nop{})
	stats, err := second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Loaded)
	assert.Equal(t, 7, stats.Skipped)
	assert.Len(t, store.committed, 7)
}

func TestRunner_ExtractFailure(t *testing.T) {
	sink := &logging.MemorySink{}
	store := newMemStore()

	extractor := pipeline.NewExtractor("no/such/file.csv", "no.json", "products", "u", 1, sink)
	extractor.Fetcher = &pipeline.SimulatedFetcher{Statuses: []int{200}}
	extractor.Sleep = func(time.Duration) {}
	runner := pipeline.NewRunner(extractor, pipeline.NewTransformer(sink),
		pipeline.NewLoader(store, 10, nil, sink), sink)

	stats, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.StateFailed, runner.State())
	assert.Equal(t, pipeline.PhaseExtract, stats.PhaseFailed)
	assert.False(t, stats.Succeeded())
	assert.Equal(t, 0, stats.Loaded)
	assert.NotEmpty(t, sink.BySeverity(logging.Critical))
}

func TestRunner_LoadFailureKeepsEarlierBatches(t *testing.T) {
	store := newMemStore()
	// Batch size 3 over 7 records = 3 batches; fail the second.
	runner := testRunner(t, store, pipeline.FailOnBatch{Batch: 2}, logging.Nop{})

	stats, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.StateFailed, runner.State())
	assert.Equal(t, pipeline.PhaseLoad, stats.PhaseFailed)

	// First batch committed and stays durable.
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 7, stats.Transformed)
	assert.Len(t, store.committed, 3)
}
