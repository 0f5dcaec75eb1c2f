package config

import (
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/json"
)

// dottedJSON reads DataJoint style files whose keys may themselves contain
// dots ("database.host", or "custom": {"database.prefix": ...}) and nests
// them so every key addresses the same path however it was written.
type dottedJSON struct{}

func (dottedJSON) Unmarshal(b []byte) (map[string]any, error) {
	m, err := json.Parser().Unmarshal(b)
	if err != nil {
		return nil, err
	}
	flat, _ := maps.Flatten(m, nil, ".")
	return maps.Unflatten(flat, "."), nil
}

func (dottedJSON) Marshal(m map[string]any) ([]byte, error) {
	return json.Parser().Marshal(m)
}
