// Package model defines shared data types used across the stock metrics pipeline.
//
// Conventions:
//   - Dates: time.Time normalized to UTC midnight, one row per trading day
//   - Prices: float64 in the instrument's quote currency
//   - Nullable metrics: *float64, nil meaning null
//   - Partition keys: (year, instrument), one columnar object per key
package model
