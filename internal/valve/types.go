package valve

import (
	"strconv"

	"github.com/luftujha/luftujha-core/internal/upstream"
)

// Snapshot is the last observed state of one valve entity.
//
// Value is the parsed numeric opening percentage; State keeps the raw
// upstream string so consumers can distinguish "0" from "unavailable".
type Snapshot struct {
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name"`
	Value      float64        `json:"value"`
	Min        float64        `json:"min"`
	Max        float64        `json:"max"`
	Step       float64        `json:"step"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// SnapshotFromEntity builds a Snapshot from an upstream entity state.
//
// Bounds and the display name come from the attribute map on every
// update. A non-numeric state (e.g. "unavailable") leaves Value at
// zero; State preserves the raw string.
func SnapshotFromEntity(e upstream.EntityState) Snapshot {
	s := Snapshot{
		EntityID:   e.EntityID,
		Name:       e.EntityID,
		State:      e.State,
		Attributes: e.Attributes,
	}

	if v, err := strconv.ParseFloat(e.State, 64); err == nil {
		s.Value = v
	}

	if e.Attributes != nil {
		if name, ok := e.Attributes["friendly_name"].(string); ok && name != "" {
			s.Name = name
		}
		s.Min = floatAttr(e.Attributes, "min")
		s.Max = floatAttr(e.Attributes, "max")
		s.Step = floatAttr(e.Attributes, "step")
	}
	return s
}

// floatAttr reads a numeric attribute, tolerating the number types JSON
// decoding can produce.
func floatAttr(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
