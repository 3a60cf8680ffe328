package pipeline

import (
	"context"
	"fmt"

	"salespipe/internal/dbclient"
)

// CatalogSource abstracts where the product catalog comes from.
type CatalogSource interface {
	Read(ctx context.Context) ([]RawRecord, error)
}

// FileCatalog reads the catalog from a JSON object file.
type FileCatalog struct {
	Path string
	Key  string
}

func (f FileCatalog) Read(_ context.Context) ([]RawRecord, error) {
	return ReadJSON(f.Path, f.Key)
}

// DBCatalog reads the catalog from an external relational
// database, one product per row.
type DBCatalog struct {
	Client *dbclient.Client
	Query  string
}

func (d DBCatalog) Read(ctx context.Context) ([]RawRecord, error) {
	rows, err := d.Client.QueryMaps(ctx, d.Query)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RawRecord(row))
	}
	return records, nil
}
