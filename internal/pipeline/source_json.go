package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ReadJSON extracts the array of records stored under key in a
// JSON object file. The error message for a missing key lists the
// keys that were available.
func ReadJSON(path, key string) ([]RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceParse, path, err)
	}

	raw, ok := doc[key]
	if !ok {
		available := make([]string, 0, len(doc))
		for k := range doc {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrMissingKey, key, available)
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s key %q is not an array of objects: %v", ErrSourceParse, path, key, err)
	}

	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, RawRecord(item))
	}
	return records, nil
}
