package codec

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// SplitToSingleFeatureCollections turns a FeatureCollection of N features
// into N collections of one feature each, in order. Any other GeoJSON object,
// or a collection without a features member, is returned unchanged as the only
// element.
func SplitToSingleFeatureCollections(input json.RawMessage) ([]json.RawMessage, error) {
	var head struct {
		Type     string          `json:"type"`
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(input, &head); err != nil || head.Type != "FeatureCollection" || isNull(head.Features) {
		return []json.RawMessage{input}, nil
	}

	fc, err := geojson.UnmarshalFeatureCollection(input)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	out := make([]json.RawMessage, 0, len(fc.Features))
	for i, feature := range fc.Features {
		single := geojson.NewFeatureCollection()
		single.Append(feature)
		data, err := single.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode feature %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
