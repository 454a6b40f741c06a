package partition

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/mlenz/stockpipe/internal/model"
)

// rawRecord is the parquet layout of a raw partition row.
type rawRecord struct {
	Instrument string  `parquet:"instrument"`
	Date       int64   `parquet:"date"` // µs since epoch
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	IngestTS   int64   `parquet:"ingest_ts"` // µs since epoch
}

// enrichedRecord adds the derived metric columns. Metric columns are
// optional: null daily_return marks an instrument's first observed date.
type enrichedRecord struct {
	rawRecord
	DailyReturn *float64 `parquet:"daily_return,optional"`
	RollingVol  *float64 `parquet:"rolling_vol,optional"`
}

// Column describes one physical column of a partition file.
type Column struct {
	Name string
	Type string
}

// EnrichedColumns returns the column set every enriched partition is
// expected to carry, derived from the parquet schema.
func EnrichedColumns() []Column {
	return schemaColumns(parquet.SchemaOf(enrichedRecord{}))
}

func schemaColumns(schema *parquet.Schema) []Column {
	fields := schema.Fields()
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, Column{Name: f.Name(), Type: f.Type().String()})
	}
	return cols
}

func encodeRaw(rows []model.PriceRow) ([]byte, error) {
	records := make([]rawRecord, len(rows))
	for i, r := range rows {
		records[i] = toRawRecord(r)
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRaw(data []byte) ([]model.PriceRow, error) {
	records, err := parquet.Read[rawRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	rows := make([]model.PriceRow, len(records))
	for i, rec := range records {
		rows[i] = fromRawRecord(rec)
	}
	return rows, nil
}

func encodeEnriched(rows []model.EnrichedRow) ([]byte, error) {
	records := make([]enrichedRecord, len(rows))
	for i, r := range rows {
		records[i] = enrichedRecord{
			rawRecord:   toRawRecord(r.PriceRow),
			DailyReturn: r.DailyReturn,
			RollingVol:  r.RollingVol,
		}
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeEnriched returns the rows along with the file's physical column set,
// which the quality gate validates against the expected schema.
func decodeEnriched(data []byte) ([]model.EnrichedRow, []Column, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	cols := schemaColumns(file.Schema())

	records, err := parquet.Read[enrichedRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("read parquet: %w", err)
	}

	rows := make([]model.EnrichedRow, len(records))
	for i, rec := range records {
		rows[i] = model.EnrichedRow{
			PriceRow:    fromRawRecord(rec.rawRecord),
			DailyReturn: rec.DailyReturn,
			RollingVol:  rec.RollingVol,
		}
	}
	return rows, cols, nil
}

func toRawRecord(r model.PriceRow) rawRecord {
	return rawRecord{
		Instrument: r.Instrument,
		Date:       r.Date.UnixMicro(),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
		IngestTS:   r.IngestTS.UnixMicro(),
	}
}

func fromRawRecord(rec rawRecord) model.PriceRow {
	return model.PriceRow{
		Instrument: rec.Instrument,
		Date:       time.UnixMicro(rec.Date).UTC(),
		Open:       rec.Open,
		High:       rec.High,
		Low:        rec.Low,
		Close:      rec.Close,
		Volume:     rec.Volume,
		IngestTS:   time.UnixMicro(rec.IngestTS).UTC(),
	}
}
