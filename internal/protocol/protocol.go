// Package protocol defines the coordinate stream messages exchanged between
// runners, the relay and map viewers.
package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/coords_batch.schema.json
var coordsBatchSchema string

// Metadata identifies the sender of a batch. Text fields carry a trailing
// newline on the wire; viewers display them verbatim.
type Metadata struct {
	User  string `json:"user"`
	Color string `json:"color"`
	Extra string `json:"extra,omitempty"`
	EnvID string `json:"env_id"`
}

// Coord is one (x, y, map) sample.
type Coord [3]uint8

// CoordsBatch is one environment's positions since the previous flush.
type CoordsBatch struct {
	Metadata Metadata `json:"metadata"`
	Coords   []Coord  `json:"coords"`
}

// Validator checks raw messages against the embedded batch schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	s, err := jsonschema.CompileString("coords_batch.schema.json", coordsBatchSchema)
	if err != nil {
		return nil, fmt.Errorf("compile coords_batch schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Decode validates raw and decodes it.
func (v *Validator) Decode(raw []byte) (CoordsBatch, error) {
	var b CoordsBatch
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return b, fmt.Errorf("%s: %w", ReasonBadJSON, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return b, fmt.Errorf("%s: %w", ReasonSchema, err)
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("%s: %w", ReasonBadJSON, err)
	}
	return b, nil
}
