package types

import (
	"encoding/json"
	"math"
)

// Reduction combines weighted criterion values into a total.
type Reduction string

const (
	ReduceSum     Reduction = "sum"
	ReduceAverage Reduction = "average"
	ReduceMax     Reduction = "max"
)

// Valid reports whether r is a known reduction. The empty reduction means sum.
func (r Reduction) Valid() bool {
	switch r {
	case "", ReduceSum, ReduceAverage, ReduceMax:
		return true
	}
	return false
}

// BreakdownEntry is the per-criterion slot of a ScoreResult.
// Failed entries carry NaN values, encoded as JSON null.
type BreakdownEntry struct {
	Name          string        `json:"criterion_name"`
	Kind          CriterionKind `json:"evaluator_kind"`
	RawValue      float64       `json:"raw_value"`
	WeightedValue float64       `json:"weighted_value"`
	Failed        bool          `json:"failed,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type breakdownJSON struct {
	Name          string        `json:"criterion_name"`
	Kind          CriterionKind `json:"evaluator_kind"`
	RawValue      *float64      `json:"raw_value"`
	WeightedValue *float64      `json:"weighted_value"`
	Failed        bool          `json:"failed,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nilAsNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON implements json.Marshaler.
func (b BreakdownEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(breakdownJSON{
		Name:          b.Name,
		Kind:          b.Kind,
		RawValue:      finiteOrNil(b.RawValue),
		WeightedValue: finiteOrNil(b.WeightedValue),
		Failed:        b.Failed,
		Error:         b.Error,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BreakdownEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		breakdownJSON
		ShortName string        `json:"name"`
		ShortKind CriterionKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		raw.Name = raw.ShortName
	}
	if raw.Kind == "" {
		raw.Kind = raw.ShortKind
	}
	*b = BreakdownEntry{
		Name:          raw.Name,
		Kind:          raw.Kind,
		RawValue:      nilAsNaN(raw.RawValue),
		WeightedValue: nilAsNaN(raw.WeightedValue),
		Failed:        raw.Failed,
		Error:         raw.Error,
	}
	return nil
}

// ScoreResult is the outcome of scoring one buffer.
type ScoreResult struct {
	Total     float64          `json:"total"`
	Reduction Reduction        `json:"reduction"`
	Breakdown []BreakdownEntry `json:"breakdown"`
	// Threshold and Detected are set when the scorer has a detection threshold.
	Threshold *float64 `json:"threshold,omitempty"`
	Detected  bool     `json:"detected"`
}

// Partial reports whether any criterion failed to evaluate.
func (r *ScoreResult) Partial() bool {
	for _, b := range r.Breakdown {
		if b.Failed {
			return true
		}
	}
	return false
}

// Entry returns the breakdown entry named name.
func (r *ScoreResult) Entry(name string) (BreakdownEntry, bool) {
	for _, b := range r.Breakdown {
		if b.Name == name {
			return b, true
		}
	}
	return BreakdownEntry{}, false
}
