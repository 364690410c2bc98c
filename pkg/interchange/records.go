// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package interchange

import (
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"annostore.io/annostore/pkg/annoterr"
)

// Split separates a GeoJSON document into raw feature records. The document
// must be a list of features or a FeatureCollection.
func Split(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, annoterr.ErrType.New("empty document, requires a list of features")
	}

	switch data[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, annoterr.ErrParse.Wrap(err)
		}
		return records, nil
	case '{':
		var collection struct {
			Type     string            `json:"type"`
			Features []json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(data, &collection); err != nil {
			return nil, annoterr.ErrParse.Wrap(err)
		}
		if collection.Type != "FeatureCollection" {
			return nil, annoterr.ErrType.New("requires a list of features, got %q", collection.Type)
		}
		return collection.Features, nil
	default:
		return nil, annoterr.ErrType.New("requires a list of features")
	}
}

// ParseFeature decodes a single raw record.
func ParseFeature(raw json.RawMessage) (*geojson.Feature, error) {
	feature, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}
	return feature, nil
}

// ClassificationName extracts the classification name from a raw record
// without decoding its geometry. It returns "" when there is none.
func ClassificationName(raw json.RawMessage) string {
	var record struct {
		Properties struct {
			Classification struct {
				Name string `json:"name"`
			} `json:"classification"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return ""
	}
	return record.Properties.Classification.Name
}

// Marshal encodes features as a GeoJSON list.
func Marshal(features []*geojson.Feature) ([]byte, error) {
	if features == nil {
		features = []*geojson.Feature{}
	}
	data, err := json.Marshal(features)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}
	return data, nil
}
