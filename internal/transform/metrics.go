package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/mlenz/stockpipe/internal/model"
)

// Enrich computes daily_return and rolling_vol for the given rows.
//
// Rows are sorted by date ascending per instrument. The return at an
// instrument's first observed date is null (no prior close); a prior close
// of zero is undefined input and fails the whole computation rather than
// propagating an infinity. rolling_vol is the sample standard deviation of
// the trailing `window` returns with a minimum-sample floor of one:
// degenerate windows yield 0, never null.
//
// Partitions are instrument-scoped, so the per-instrument grouping here is
// normally a single group; it exists so windows can never mix instruments
// if that ever changes.
func Enrich(rows []model.PriceRow, window int) ([]model.EnrichedRow, error) {
	byInstrument := make(map[string][]model.PriceRow)
	for _, r := range rows {
		byInstrument[r.Instrument] = append(byInstrument[r.Instrument], r)
	}

	instruments := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		instruments = append(instruments, id)
	}
	sort.Strings(instruments)

	out := make([]model.EnrichedRow, 0, len(rows))
	for _, id := range instruments {
		series := byInstrument[id]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		enriched, err := enrichSeries(series, window)
		if err != nil {
			return nil, err
		}
		out = append(out, enriched...)
	}
	return out, nil
}

func enrichSeries(series []model.PriceRow, window int) ([]model.EnrichedRow, error) {
	returns := make([]*float64, len(series))
	for i := 1; i < len(series); i++ {
		prior := series[i-1].Close
		if prior == 0 {
			return nil, fmt.Errorf("instrument %s: zero close on %s, cannot compute return for %s",
				series[i].Instrument,
				series[i-1].Date.Format("2006-01-02"),
				series[i].Date.Format("2006-01-02"))
		}
		r := 100 * (series[i].Close - prior) / prior
		returns[i] = &r
	}

	out := make([]model.EnrichedRow, len(series))
	for i, row := range series {
		vol := rollingStd(returns, i, window)
		out[i] = model.EnrichedRow{
			PriceRow:    row,
			DailyReturn: returns[i],
			RollingVol:  &vol,
		}
	}
	return out, nil
}

// rollingStd is the sample standard deviation of the non-null returns in
// the trailing window ending at index i. Fewer than two samples yield 0.
func rollingStd(returns []*float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}

	var samples []float64
	for j := lo; j <= i; j++ {
		if returns[j] != nil {
			samples = append(samples, *returns[j])
		}
	}
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		sq += (s - mean) * (s - mean)
	}
	return math.Sqrt(sq / float64(len(samples)-1))
}
