package partition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/objstore"
)

// ErrNotExist mirrors the object-store sentinel for absent partitions.
var ErrNotExist = objstore.ErrNotExist

// Enriched is one decoded enriched partition.
type Enriched struct {
	Key     model.Key
	Rows    []model.EnrichedRow
	Columns []Column // physical file schema
}

// Store reads and writes partitions on top of an object store.
type Store struct {
	objects objstore.Store
}

// NewStore wraps an object store.
func NewStore(objects objstore.Store) *Store {
	return &Store{objects: objects}
}

// ReadRaw returns the raw partition for key, or ErrNotExist.
func (s *Store) ReadRaw(ctx context.Context, key model.Key) ([]model.PriceRow, error) {
	data, err := s.objects.Read(ctx, ObjectKey(DomainRaw, key))
	if err != nil {
		return nil, err
	}
	return decodeRaw(data)
}

// WriteRaw replaces the raw partition for key. Every row must carry the
// partition's instrument and year, and (instrument, date) must be unique.
func (s *Store) WriteRaw(ctx context.Context, key model.Key, rows []model.PriceRow) error {
	if err := validateRows(key, rows); err != nil {
		return err
	}
	data, err := encodeRaw(rows)
	if err != nil {
		return err
	}
	return s.objects.Write(ctx, ObjectKey(DomainRaw, key), data)
}

// ReadEnriched returns the enriched partition for key, or ErrNotExist.
func (s *Store) ReadEnriched(ctx context.Context, key model.Key) (*Enriched, error) {
	data, err := s.objects.Read(ctx, ObjectKey(DomainEnriched, key))
	if err != nil {
		return nil, err
	}
	rows, cols, err := decodeEnriched(data)
	if err != nil {
		return nil, err
	}
	return &Enriched{Key: key, Rows: rows, Columns: cols}, nil
}

// WriteEnriched replaces the enriched partition for key.
func (s *Store) WriteEnriched(ctx context.Context, key model.Key, rows []model.EnrichedRow) error {
	plain := make([]model.PriceRow, len(rows))
	for i, r := range rows {
		plain[i] = r.PriceRow
	}
	if err := validateRows(key, plain); err != nil {
		return err
	}

	data, err := encodeEnriched(rows)
	if err != nil {
		return err
	}
	return s.objects.Write(ctx, ObjectKey(DomainEnriched, key), data)
}

// Keys lists the partition keys present in a domain.
func (s *Store) Keys(ctx context.Context, domain string) ([]model.Key, error) {
	objectKeys, err := s.objects.List(ctx, domain+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s partitions: %w", domain, err)
	}

	keys := make([]model.Key, 0, len(objectKeys))
	for _, ok := range objectKeys {
		_, k, err := ParseObjectKey(ok)
		if err != nil {
			// Foreign object under the prefix; skip rather than fail the run.
			continue
		}
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Instrument < keys[j].Instrument
	})
	return keys, nil
}

// Years lists the distinct years present in a domain, ascending.
func (s *Store) Years(ctx context.Context, domain string) ([]int, error) {
	keys, err := s.Keys(ctx, domain)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var years []int
	for _, k := range keys {
		if !seen[k.Year] {
			seen[k.Year] = true
			years = append(years, k.Year)
		}
	}
	sort.Ints(years)
	return years, nil
}

// LatestRawDate scans the raw domain and returns the maximum row date, the
// ingestion high-water mark. ok is false when no raw data exists yet.
func (s *Store) LatestRawDate(ctx context.Context) (latest time.Time, ok bool, err error) {
	keys, err := s.Keys(ctx, DomainRaw)
	if err != nil {
		return time.Time{}, false, err
	}

	for _, key := range keys {
		rows, err := s.ReadRaw(ctx, key)
		if errors.Is(err, ErrNotExist) {
			continue
		}
		if err != nil {
			return time.Time{}, false, fmt.Errorf("read partition %s: %w", key, err)
		}
		for _, r := range rows {
			if !ok || r.Date.After(latest) {
				latest, ok = r.Date, true
			}
		}
	}
	return latest, ok, nil
}

func validateRows(key model.Key, rows []model.PriceRow) error {
	seen := make(map[model.RowKey]bool, len(rows))
	for _, r := range rows {
		if r.Instrument != key.Instrument || r.Date.Year() != key.Year {
			return fmt.Errorf("row %s/%s does not belong to partition %s",
				r.Instrument, r.Date.Format("2006-01-02"), key)
		}
		rk := r.Key()
		if seen[rk] {
			return fmt.Errorf("duplicate row %s/%s in partition %s",
				rk.Instrument, rk.Date.Format("2006-01-02"), key)
		}
		seen[rk] = true
	}
	return nil
}
