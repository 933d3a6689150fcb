// Package demo holds the toy Scout/Builder pair driven by cmd/xagent.
package demo

import (
	"encoding/json"

	"github.com/trickstertwo/xagent/world"
)

// Message types exchanged by the demo pair.
const (
	TypeMap           = "map.v1"
	TypeExplored      = "exploration.completed.v1"
	TypeBuildStarted  = "build.started.v1"
	TypeBuildComplete = "build.completed.v1"
)

// MapReport is the map.v1 payload: a square of column heights around Center.
type MapReport struct {
	Center  world.Position `json:"center"`
	Radius  int            `json:"radius"`
	Heights [][]int        `json:"heights"`
	Flat    bool           `json:"flat"`
	Area    int            `json:"area"`
}

// toPayload renders v in its JSON shape (maps, slices, float64) so the
// message holds no references into agent state.
func toPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
