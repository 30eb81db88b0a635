package types

import "encoding/json"

// The JSON decoders below also accept the short field names used by the
// YAML catalogs ("label", "text", "pattern", "kind", "params"). The long
// name wins when both are present.

// UnmarshalJSON implements json.Unmarshaler.
func (m *Match) UnmarshalJSON(data []byte) error {
	type plain Match
	aux := struct {
		*plain
		ShortLabel string `json:"label"`
		ShortText  string `json:"text"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.Label == "" {
		m.Label = aux.ShortLabel
	}
	if m.Text == "" {
		m.Text = aux.ShortText
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entity) UnmarshalJSON(data []byte) error {
	type plain Entity
	aux := struct {
		*plain
		ShortText string `json:"text"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.Text == "" {
		e.Text = aux.ShortText
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PatternSpec) UnmarshalJSON(data []byte) error {
	type plain PatternSpec
	aux := struct {
		*plain
		ShortPattern string `json:"pattern"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.Pattern == "" {
		p.Pattern = aux.ShortPattern
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Criterion) UnmarshalJSON(data []byte) error {
	type plain Criterion
	aux := struct {
		*plain
		ShortKind   CriterionKind    `json:"kind"`
		ShortParams *CriterionParams `json:"params"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Kind == "" {
		c.Kind = aux.ShortKind
	}
	if aux.ShortParams != nil && !hasField(data, "parameters") {
		c.Params = *aux.ShortParams
	}
	return nil
}

func hasField(data []byte, name string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	_, ok := fields[name]
	return ok
}
