package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/partition"
)

func enrichedRow(instrument string, date time.Time) model.EnrichedRow {
	ret := 1.0
	vol := 0.5
	return model.EnrichedRow{
		PriceRow: model.PriceRow{
			Instrument: instrument,
			Date:       date,
			Open:       99, High: 101, Low: 98, Close: 100,
			Volume:   1000,
			IngestTS: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		DailyReturn: &ret,
		RollingVol:  &vol,
	}
}

func validPartition() *partition.Enriched {
	return &partition.Enriched{
		Key: model.Key{Instrument: "AAPL", Year: 2024},
		Rows: []model.EnrichedRow{
			enrichedRow("AAPL", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
			enrichedRow("AAPL", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
		},
		Columns: partition.EnrichedColumns(),
	}
}

func TestCheckPasses(t *testing.T) {
	res := Check(validPartition())
	assert.True(t, res.Passed(), "violations: %v", res.Violations)
	assert.NoError(t, res.Err())
}

func TestCheckMissingColumn(t *testing.T) {
	p := validPartition()
	var cols []partition.Column
	for _, c := range p.Columns {
		if c.Name != "date" {
			cols = append(cols, c)
		}
	}
	p.Columns = cols

	res := Check(p)
	require.False(t, res.Passed())

	found := false
	for _, v := range res.Violations {
		if v.Column == "date" && v.Rule == RuleMissingColumn {
			found = true
		}
	}
	assert.True(t, found, "violation must name the missing date column, got %v", res.Violations)
}

func TestCheckTypeMismatch(t *testing.T) {
	p := validPartition()
	for i, c := range p.Columns {
		if c.Name == "volume" {
			p.Columns[i].Type = "BYTE_ARRAY"
		}
	}

	res := Check(p)
	require.False(t, res.Passed())
	assert.Equal(t, RuleTypeMismatch, res.Violations[0].Rule)
	assert.Equal(t, "volume", res.Violations[0].Column)
}

func TestCheckNullConstraints(t *testing.T) {
	p := validPartition()
	p.Rows[0].Instrument = ""
	p.Rows[1].Date = time.Time{}

	res := Check(p)
	require.Len(t, res.Violations, 2, "all violations collected, no short-circuit")
	assert.Equal(t, "instrument", res.Violations[0].Column)
	assert.Equal(t, RuleNullValue, res.Violations[0].Rule)
	assert.Equal(t, "date", res.Violations[1].Column)
}

func TestCheckNullableMetricsAllowed(t *testing.T) {
	p := validPartition()
	p.Rows[0].DailyReturn = nil // first observed date
	p.Rows[0].RollingVol = nil

	res := Check(p)
	assert.True(t, res.Passed(), "null metrics are legitimate: %v", res.Violations)
}

func TestCheckNonFiniteMetrics(t *testing.T) {
	p := validPartition()
	inf := math.Inf(1)
	nan := math.NaN()
	p.Rows[0].DailyReturn = &inf
	p.Rows[1].RollingVol = &nan

	res := Check(p)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, RuleNonFinite, res.Violations[0].Rule)
	assert.Equal(t, "daily_return", res.Violations[0].Column)
	assert.Equal(t, "rolling_vol", res.Violations[1].Column)
}

func TestCheckDuplicateKeys(t *testing.T) {
	p := validPartition()
	p.Rows[1].Date = p.Rows[0].Date

	res := Check(p)
	require.False(t, res.Passed())
	assert.Equal(t, RuleDuplicateKey, res.Violations[0].Rule)
}

func TestCheckCollectsAcrossCategories(t *testing.T) {
	p := validPartition()
	// Schema violation + value violation at once.
	p.Columns = p.Columns[1:]
	p.Rows[0].Instrument = ""

	res := Check(p)
	assert.GreaterOrEqual(t, len(res.Violations), 2)
	assert.Error(t, res.Err())
}
