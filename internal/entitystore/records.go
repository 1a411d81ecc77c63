package entitystore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeRecords reads raw configuration records from YAML or JSON.
//
// The document is either a single record or a list of records. An empty
// document yields no records.
func DecodeRecords(r io.Reader) ([]map[string]any, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	switch t := doc.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		records := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T, not a mapping", ErrInvalidDocument, i, item)
			}
			records = append(records, m)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: top level is %T", ErrInvalidDocument, doc)
	}
}

// RecordError ties a validation failure to its position in a document.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Import validates every record, then creates them in order.
//
// Nothing is stored unless all records validate; the validation errors
// are joined, one *RecordError per bad record.
func (s *Store) Import(ctx context.Context, records []map[string]any) ([]*Entry, error) {
	var errs []error
	for i, raw := range records {
		if _, err := s.Validate(raw); err != nil {
			errs = append(errs, &RecordError{Index: i, Err: err})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	created := make([]*Entry, 0, len(records))
	for i, raw := range records {
		entry, err := s.Create(ctx, raw)
		if err != nil {
			return created, &RecordError{Index: i, Err: err}
		}
		created = append(created, entry)
	}
	return created, nil
}

// Seed imports records from r when the store is empty. It returns the
// number of entries created.
func (s *Store) Seed(ctx context.Context, r io.Reader) (int, error) {
	if n := s.Count(); n > 0 {
		s.logger.Debug("entity store not empty, skipping seed", "count", n)
		return 0, nil
	}
	records, err := DecodeRecords(r)
	if err != nil {
		return 0, err
	}
	created, err := s.Import(ctx, records)
	if err != nil {
		return len(created), fmt.Errorf("seeding entity store: %w", err)
	}
	s.logger.Info("entity store seeded", "count", len(created))
	return len(created), nil
}
