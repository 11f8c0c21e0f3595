package provider

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema reflects T into a documentation schema for an output record. Unlike
// GenerateSchema it keeps `omitempty` fields optional and honors custom JSONSchema
// methods on field types.
func Schema[T any](title string) ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var v T
	s := reflector.Reflect(v)
	if title != "" {
		s.Title = title
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("Schema: marshal %s: %w", title, err)
	}
	return b, nil
}
