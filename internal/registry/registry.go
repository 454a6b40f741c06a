package registry

import (
	"context"

	"github.com/mlenz/stockpipe/internal/model"
)

// Registry lists the instruments the pipeline operates on.
type Registry interface {
	List(ctx context.Context) ([]model.Instrument, error)
}

// Static serves a fixed instrument list, typically from config.
type Static struct {
	instruments []model.Instrument
}

// NewStatic copies the given list into a Registry.
func NewStatic(instruments []model.Instrument) *Static {
	out := make([]model.Instrument, len(instruments))
	copy(out, instruments)
	return &Static{instruments: out}
}

func (s *Static) List(ctx context.Context) ([]model.Instrument, error) {
	out := make([]model.Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out, nil
}

// IDs extracts the identifier list a fetch call needs.
func IDs(instruments []model.Instrument) []string {
	ids := make([]string, len(instruments))
	for i, inst := range instruments {
		ids[i] = inst.ID
	}
	return ids
}
